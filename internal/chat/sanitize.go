package chat

import "encoding/json"

// Sanitize returns a copy of turns in which every content value is a
// string: nil becomes "", strings pass through, anything else is
// JSON-serialized. The completion API rejects null content, and turns
// appended mid-loop (tool results in particular) can still carry structured
// payloads, so this runs immediately before every completion call rather
// than once at loop start.
func Sanitize(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		switch v := t.Content.(type) {
		case nil:
			t.Content = ""
		case string:
			t.Content = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				t.Content = ""
			} else {
				t.Content = string(b)
			}
		}
		out[i] = t
	}
	return out
}
