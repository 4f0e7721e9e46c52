package oracle

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z0-9_-]*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripCodeFence removes a surrounding ```lang ... ``` wrapper, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractFirstObject returns the first balanced {...} object in s after
// stripping code fences. Braces inside JSON strings are ignored.
func ExtractFirstObject(s string) (string, bool) {
	s = StripCodeFence(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Decode unmarshals raw into v. Plain JSON is tried first; otherwise the
// first object is extracted from fenced or chatty output.
func Decode(raw string, v any) error {
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), v); err == nil {
		return nil
	}
	obj, ok := ExtractFirstObject(raw)
	if !ok {
		return Invalid("no JSON object in response (%d bytes)", len(raw))
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return newError(ErrResponseInvalid, err, "decoding extracted object")
	}
	return nil
}
