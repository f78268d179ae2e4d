package chat

import "testing"

func TestSanitizeCoercesContent(t *testing.T) {
	turns := []Turn{
		{Role: RoleSystem, Content: "keep me"},
		{Role: RoleUser, Content: nil},
		{Role: RoleTool, Content: map[string]any{"distanceMeters": 1200}, ToolCallID: "call_1"},
		{Role: RoleAssistant, Content: []any{"a", 1}},
	}

	out := Sanitize(turns)

	if got := out[0].Text(); got != "keep me" {
		t.Fatalf("string content changed: %q", got)
	}
	if got := out[1].Text(); got != "" {
		t.Fatalf("nil content should become empty string, got %q", got)
	}
	if got := out[2].Text(); got != `{"distanceMeters":1200}` {
		t.Fatalf("map content should be serialized, got %q", got)
	}
	if got := out[3].Text(); got != `["a",1]` {
		t.Fatalf("slice content should be serialized, got %q", got)
	}
	if out[2].ToolCallID != "call_1" {
		t.Fatalf("tool call id must survive sanitization")
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	turns := []Turn{{Role: RoleUser, Content: nil}}
	_ = Sanitize(turns)
	if turns[0].Content != nil {
		t.Fatalf("input slice was mutated")
	}
}
