// Package sanitize strips script fragments and control characters from
// user-supplied strings.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	scriptTag    = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	jsScheme     = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+\s*=`)
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// String removes script tags, javascript: schemes, inline event handler
// attributes and control characters, then trims surrounding whitespace.
func String(s string) string {
	s = scriptTag.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Value walks a decoded JSON value and sanitizes every string leaf.
// Object keys are left as-is. Numbers, booleans and nil pass through.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Value(e)
		}
		return out
	default:
		return v
	}
}

// Strings sanitizes every element of a query or form value list in place
func Strings(values map[string][]string) {
	for key, vals := range values {
		for i, v := range vals {
			vals[i] = String(v)
		}
		values[key] = vals
	}
}
