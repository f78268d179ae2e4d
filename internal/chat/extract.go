package chat

import (
	"encoding/json"
	"strings"
)

// Placeholder is substituted into cleaned text wherever a validated
// location fragment was removed. The presentation layer splits on it to
// re-interleave prose segments and location cards.
const Placeholder = "[LOCATION_CARD]"

// Extraction is the output of scanning one model reply.
type Extraction struct {
	Locations   []Location
	CleanedText string
	ErrorCount  int
}

// ExtractOptions tunes extraction behavior. StripInvalid also removes
// fragments that parsed but failed validation; the default leaves them
// inline, matching how replies were historically rendered.
type ExtractOptions struct {
	StripInvalid bool
}

// Extract scans text for embedded location JSON and returns the validated
// records in left-to-right order together with the cleaned reply text.
// It is a pure function.
func Extract(text string) Extraction {
	return ExtractWithOptions(text, ExtractOptions{})
}

// ExtractWithOptions is Extract with explicit options.
func ExtractWithOptions(text string, opts ExtractOptions) Extraction {
	var (
		out       Extraction
		cleaned   strings.Builder
		depth     int
		inString  bool
		escaped   bool
		start     int // candidate start offset, valid when depth > 0
		lastWrite int // end of the last span copied into cleaned
	)

	// Character scan rather than a regex: location objects nest JSON
	// (coordinates, details) and string values may contain literal braces,
	// so brace depth only counts outside string mode and backslash escapes
	// must not toggle quote state. Scanning bytes is safe because the
	// characters that matter are all single-byte in UTF-8.
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closing brace in prose
			}
			depth--
			if depth == 0 {
				fragment := text[start : i+1]
				loc, ok := parseLocation(fragment)
				if ok {
					out.Locations = append(out.Locations, loc)
				} else {
					out.ErrorCount++
				}
				if ok || opts.StripInvalid {
					cleaned.WriteString(text[lastWrite:start])
					if ok {
						cleaned.WriteString(Placeholder)
					}
					lastWrite = i + 1
				}
			}
		}
	}
	cleaned.WriteString(text[lastWrite:])
	out.CleanedText = cleaned.String()
	return out
}

// parseLocation parses and validates one candidate fragment. Validation
// happens on the raw document so that wrongly-typed fields are rejected
// instead of silently coerced.
func parseLocation(fragment string) (Location, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(fragment), &raw); err != nil {
		return Location{}, false
	}
	if !validLocationDoc(raw) {
		return Location{}, false
	}
	var loc Location
	if err := json.Unmarshal([]byte(fragment), &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

func validLocationDoc(raw map[string]any) bool {
	name, _ := raw["name"].(string)
	typ, _ := raw["type"].(string)
	if name == "" || typ == "" {
		return false
	}
	locField, ok := raw["location"].(map[string]any)
	if !ok {
		return false
	}
	addr, _ := locField["address"].(string)
	if addr == "" {
		return false
	}
	if coords, present := locField["coordinates"]; present {
		cm, ok := coords.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := cm["lat"].(float64); !ok {
			return false
		}
		if _, ok := cm["lng"].(float64); !ok {
			return false
		}
	}
	for _, key := range []string{"highlights", "tips", "nearbyAttractions"} {
		if v, present := raw[key]; present {
			if _, ok := v.([]any); !ok {
				return false
			}
		}
	}
	if details, present := raw["details"]; present {
		dm, ok := details.(map[string]any)
		if !ok {
			return false
		}
		if rating, present := dm["rating"]; present {
			switch rating.(type) {
			case float64, string:
			default:
				return false
			}
		}
	}
	return true
}
