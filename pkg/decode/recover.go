package decode

import (
	"encoding/json"
	"errors"
	"strings"
)

// recoverPositional repeatedly parses s, and on each syntax error applies a
// single-character patch at the reported offset. Bounded by
// maxPositionalAttempts; returns the number of parse attempts made and the
// last parser error when recovery fails.
func recoverPositional(s string, target any) (int, error) {
	var lastErr error
	attempts := 0

	for attempts < maxPositionalAttempts {
		attempts++
		err := json.Unmarshal([]byte(s), target)
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		var synErr *json.SyntaxError
		if !errors.As(err, &synErr) {
			return attempts, err
		}

		patched, ok := patchAt(s, int(synErr.Offset), synErr.Error())
		if !ok {
			return attempts, err
		}
		s = patched
	}

	return attempts, lastErr
}

// patchAt attempts one localized repair at offset. Offsets from the parser
// point just past the byte that broke the parse.
func patchAt(s string, offset int, msg string) (string, bool) {
	if offset <= 0 || offset > len(s) {
		return s, false
	}
	idx := offset - 1
	c := s[idx]

	// Missing comma between a value and the next field or element. The
	// parser trips on the opening quote or brace of the thing that should
	// have been preceded by a comma.
	if c == '"' || c == '{' || c == '[' {
		before := strings.TrimRight(s[:idx], " \t\r\n")
		if len(before) > 0 {
			last := before[len(before)-1]
			if last == '"' || last == '}' || last == ']' || (last >= '0' && last <= '9') {
				return before + "," + s[idx:], true
			}
		}
	}

	// Stray backslash, typically a half-escaped quote. Drop the backslash
	// and let the quote stand.
	if c == '\\' {
		return s[:idx] + s[idx+1:], true
	}
	if idx > 0 && s[idx-1] == '\\' && strings.Contains(msg, "invalid character") {
		return s[:idx-1] + s[idx:], true
	}

	// An unescaped quote inside a string value: the parser resumes after
	// the quote and trips on a bare word. Escape the quote that ended the
	// string early.
	if isBareWordChar(c) {
		if q := strings.LastIndexByte(s[:idx], '"'); q > 0 {
			return s[:q] + `\"` + s[q+1:], true
		}
	}

	return s, false
}

func isBareWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
