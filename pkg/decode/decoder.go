// Package decode recovers typed records from malformed reasoner output.
//
// The pipeline is layered: fence stripping and envelope extraction, then a
// strict parse, then ordered structural/escaping repair passes, then
// positional recovery driven by parser error offsets, and finally
// field-by-field reconstruction against an expected schema. Each stage runs
// only when the previous one failed. All stages are pure functions over
// their inputs.
package decode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPositionalAttempts bounds offset-driven patching to avoid loops on
// pathological input.
const maxPositionalAttempts = 5

// DecodeError is the terminal failure artifact: the raw text could not be
// recovered into the expected schema. Callers must not guess semantics from
// a failed decode.
type DecodeError struct {
	RawText          string
	ParserMessage    string
	RecoveryAttempts int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed after %d recovery attempts: %s", e.RecoveryAttempts, e.ParserMessage)
}

// Decode runs the recovery pipeline and unmarshals the result into T.
// Field-by-field reconstruction is skipped; use DecodeWithSchema when the
// caller can supply per-field defaults.
func Decode[T any](raw string) (T, error) {
	return DecodeWithSchema[T](raw, nil)
}

// DecodeWithSchema runs the full recovery pipeline. When every earlier stage
// fails and fields is non-empty, each expected field is independently
// extracted by name and missing fields fall back to their documented
// defaults; a required field with no default fails the whole decode.
func DecodeWithSchema[T any](raw string, fields []FieldSpec) (T, error) {
	var result T

	if strings.TrimSpace(raw) == "" {
		return result, &DecodeError{RawText: raw, ParserMessage: "empty response"}
	}

	cleaned := Extract(raw)
	attempts := 0

	// Strict parse. On well-formed input this is the whole pipeline.
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}

	// Structural and escaping normalization, in order.
	repaired := ApplyPasses(cleaned)
	attempts++
	if err := json.Unmarshal([]byte(repaired), &result); err == nil {
		return result, nil
	}

	// Positional recovery against the repaired text.
	posAttempts, lastErr := recoverPositional(repaired, &result)
	attempts += posAttempts
	if lastErr == nil {
		return result, nil
	}

	// Field-by-field reconstruction, last resort.
	if len(fields) > 0 {
		rec, recErr := Reconstruct(repaired, fields)
		if recErr == nil {
			assembled, marshalErr := json.Marshal(rec)
			if marshalErr == nil {
				if err := json.Unmarshal(assembled, &result); err == nil {
					return result, nil
				}
			}
		} else {
			lastErr = recErr
		}
		attempts++
	}

	var zero T
	return zero, &DecodeError{
		RawText:          raw,
		ParserMessage:    lastErr.Error(),
		RecoveryAttempts: attempts,
	}
}

// Extract strips code fences and discards explanatory prose outside the first
// balanced JSON envelope. Returns the trimmed input when no envelope is found
// so the parser can report a useful error.
func Extract(raw string) string {
	cleaned := strings.TrimSpace(raw)

	// Code fences, with or without a language tag.
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if span, ok := extractBalanced(cleaned, '{', '}'); ok {
			return span
		}
		// Unbalanced: take everything from the opening brace so later
		// stages can attempt repair.
		return cleaned[objStart:]
	}

	if arrStart >= 0 {
		if span, ok := extractBalanced(cleaned, '[', ']'); ok {
			return span
		}
		return cleaned[arrStart:]
	}

	return cleaned
}

// extractBalanced finds the first balanced JSON structure starting with
// openChar, counting bracket depth and honoring string literals.
func extractBalanced(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
