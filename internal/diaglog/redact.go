package diaglog

import "strings"

const redacted = "[REDACTED]"

// Transcribed speech counts as sensitive: diagnostics carry segment counts
// and ticks, never words.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"password":      true,
	"dsn":           true,
	"text":          true,
	"transcript":    true,
	"clipboard":     true,
}

// sensitiveSuffixes catch compound keys such as api_key or sentry_token.
var sensitiveSuffixes = []string{"token", "secret", "key"}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, s := range sensitiveSuffixes {
		if strings.HasSuffix(k, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of v with the values of sensitive keys replaced by
// "[REDACTED]". Maps and slices are walked recursively; anything else is
// returned as is.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if isSensitive(k) {
				out[k] = redacted
				continue
			}
			out[k] = Redact(child)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			if isSensitive(k) {
				s = redacted
			}
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = Redact(val[i])
		}
		return out
	}
	return v
}
