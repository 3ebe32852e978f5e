package security

import "strings"

// htmlEscaper escapes the five HTML-reserved characters plus forward
// slash. Unlike html.EscapeString it also covers "/", which closes tag
// contexts in some injection vectors.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// SanitizeString HTML-escapes a single string value.
//
// Escaping is monotonic but not idempotent: "&" becomes "&amp;" and a
// second pass yields "&amp;amp;". Double-sanitizing is harmless (never
// less-escaped) and is an accepted property of the pipeline.
func SanitizeString(s string) string {
	return htmlEscaper.Replace(s)
}

// SanitizeValue recursively sanitizes a decoded JSON-like value,
// returning a fresh copy. String leaves are escaped; maps and slices are
// rebuilt rather than mutated so callers holding the original container
// never observe the sanitized view. Non-string leaves (numbers, bools,
// nil) pass through unchanged.
func SanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = SanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// SanitizeStringMap sanitizes a flat string map (path parameters) into a
// fresh map.
func SanitizeStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = SanitizeString(v)
	}
	return out
}

// SanitizeValues sanitizes url.Values-shaped data (query parameters)
// into a fresh map.
func SanitizeValues(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, vs := range in {
		copied := make([]string, len(vs))
		for i, v := range vs {
			copied[i] = SanitizeString(v)
		}
		out[k] = copied
	}
	return out
}
