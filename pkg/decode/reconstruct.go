package decode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FieldKind selects the extraction grammar for a reconstructed field.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldFloat
	FieldBool
)

// FieldSpec names an expected field for last-resort reconstruction. A nil
// Default marks the field required; reconstruction fails without it.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Default any
}

// Reconstruct independently extracts each expected field from broken text by
// name, substituting documented defaults for fields that cannot be found.
func Reconstruct(raw string, fields []FieldSpec) (map[string]any, error) {
	out := make(map[string]any, len(fields))

	for _, f := range fields {
		val, ok := extractField(raw, f)
		if !ok {
			if f.Default == nil {
				return nil, fmt.Errorf("reconstruct: required field %q not found", f.Name)
			}
			out[f.Name] = f.Default
			continue
		}
		out[f.Name] = val
	}

	return out, nil
}

func extractField(raw string, f FieldSpec) (any, bool) {
	key := regexp.QuoteMeta(f.Name)

	switch f.Kind {
	case FieldString:
		// Greedy to the last quote before a field boundary, so values
		// containing unescaped quotes (generated SQL, mostly) survive.
		re := regexp.MustCompile(`"` + key + `"\s*:\s*"((?:[^"\\]|\\.|"(?:[^",\}\n]))*)"`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		return unescapeLoose(m[1]), true
	case FieldInt:
		re := regexp.MustCompile(`"` + key + `"\s*:\s*(-?\d+)`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, false
		}
		return n, true
	case FieldFloat:
		re := regexp.MustCompile(`"` + key + `"\s*:\s*(-?\d+(?:\.\d+)?)`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case FieldBool:
		re := regexp.MustCompile(`"` + key + `"\s*:\s*(true|false)`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		return m[1] == "true", true
	}

	return nil, false
}

// unescapeLoose resolves escapes the way a forgiving reader would: known
// escapes decode, unknown ones keep their literal character.
func unescapeLoose(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
