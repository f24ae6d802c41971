// Package sqlguard validates generated SQL before execution.
//
// Generated queries fail in predictable ways, the most common being an
// aggregate function selected alongside bare columns with no GROUP BY. The
// guard catches these shapes up front so the caller can request a repair
// instead of burning a database round trip.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMultipleStatements indicates the query contains more than one statement.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// ValidationError describes a rejected query along with a concrete
// suggestion suitable for inclusion in a repair prompt.
type ValidationError struct {
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// aggregateFuncs are the functions whose presence alongside bare columns
// requires a GROUP BY clause.
var aggregateFuncs = []string{"SUM", "COUNT", "AVG", "MIN", "MAX", "STRING_AGG", "LIST_SUM"}

var (
	selectClause  = regexp.MustCompile(`(?is)\bSELECT\b(.*?)\bFROM\b`)
	groupByClause = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	overClause    = regexp.MustCompile(`(?i)\bOVER\s*\(`)
)

// Normalize strips the trailing semicolon and rejects multi-statement input.
// Returns the single normalized statement.
func Normalize(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(query)

	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	return normalized, nil
}

// Validate normalizes the query and checks it for known-bad shapes. The
// returned string is safe to hand to the store; a *ValidationError carries
// the repair suggestion when the query is rejected.
func Validate(query string) (string, error) {
	normalized, err := Normalize(query)
	if err != nil {
		return "", &ValidationError{
			Reason:     err.Error(),
			Suggestion: "Generate a single SQL statement with no trailing statements.",
		}
	}
	if normalized == "" {
		return "", &ValidationError{
			Reason:     "empty query",
			Suggestion: "Generate a complete SELECT statement.",
		}
	}

	if verr := checkAggregateGrouping(normalized); verr != nil {
		return "", verr
	}

	return normalized, nil
}

// checkAggregateGrouping rejects a select list that mixes aggregate
// functions with bare columns when the statement has no GROUP BY.
// Aggregate-only select lists and window functions (OVER) are fine.
func checkAggregateGrouping(query string) *ValidationError {
	if groupByClause.MatchString(query) {
		return nil
	}

	m := selectClause.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	selectList := m[1]

	var usedAggregates []string
	for _, fn := range aggregateFuncs {
		re := regexp.MustCompile(`(?i)\b` + fn + `\s*\(`)
		for _, loc := range re.FindAllStringIndex(selectList, -1) {
			// A window function is not an aggregate over the result set.
			rest := selectList[loc[1]:]
			if isWindowed(selectList, rest) {
				continue
			}
			usedAggregates = append(usedAggregates, strings.ToUpper(fn))
			break
		}
	}
	if len(usedAggregates) == 0 {
		return nil
	}

	if !hasBareColumns(selectList) {
		return nil
	}

	return &ValidationError{
		Reason: fmt.Sprintf("aggregate function %s mixed with non-aggregated columns without GROUP BY",
			strings.Join(usedAggregates, ", ")),
		Suggestion: "Either add a GROUP BY clause listing every non-aggregated column, or remove the bare columns from the select list.",
	}
}

// isWindowed reports whether the aggregate call at hand is followed by an
// OVER clause after its closing paren.
func isWindowed(selectList, afterOpen string) bool {
	depth := 1
	for i := 0; i < len(afterOpen); i++ {
		switch afterOpen[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return overClause.MatchString(afterOpen[i+1:])
			}
		}
	}
	return false
}

// hasBareColumns reports whether the select list contains any top-level item
// that is not an aggregate call or a literal.
func hasBareColumns(selectList string) bool {
	for _, item := range splitTopLevel(selectList) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		// Strip an alias so `SUM(x) AS total` is still aggregate-only.
		if idx := aliasIndex(item); idx >= 0 {
			item = strings.TrimSpace(item[:idx])
		}
		if isAggregateItem(item) || isLiteralItem(item) {
			continue
		}
		return true
	}
	return false
}

func isAggregateItem(item string) bool {
	upper := strings.ToUpper(item)
	for _, fn := range aggregateFuncs {
		if strings.HasPrefix(upper, fn) {
			rest := strings.TrimSpace(upper[len(fn):])
			if strings.HasPrefix(rest, "(") {
				return true
			}
		}
	}
	return false
}

func isLiteralItem(item string) bool {
	if item == "*" {
		return false
	}
	if strings.HasPrefix(item, "'") {
		return true
	}
	for _, r := range item {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(item) > 0
}

var aliasRe = regexp.MustCompile(`(?i)\s+AS\s+[A-Za-z_"][A-Za-z0-9_"]*\s*$`)

func aliasIndex(item string) int {
	loc := aliasRe.FindStringIndex(item)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// splitTopLevel splits a select list on commas that are outside parentheses
// and string literals.
func splitTopLevel(s string) []string {
	var items []string
	depth := 0
	inString := false
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\'' {
				inString = false
			}
			continue
		}
		switch c {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				items = append(items, s[start:i])
				start = i + 1
			}
		}
	}
	items = append(items, s[start:])
	return items
}

// hasSemicolonOutsideStrings scans for a statement separator, honoring
// single- and double-quoted literals and both escape styles.
func hasSemicolonOutsideStrings(query string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range query {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

func stripTrailingSemicolon(query string) string {
	query = strings.TrimRight(query, " \t\n\r")
	if strings.HasSuffix(query, ";") {
		query = strings.TrimSuffix(query, ";")
		query = strings.TrimRight(query, " \t\n\r")
	}
	return query
}
