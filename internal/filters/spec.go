// Package filters enumerates include/exclude card filters for an archetype
// and resolves them against a deck population.
package filters

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTerm is returned when a filter term cannot be parsed.
	ErrInvalidTerm = errors.New("invalid filter term")
	// ErrUnknownCard is returned for a term naming a card absent from the report.
	ErrUnknownCard = errors.New("unknown card")
	// ErrImpossibleExclusion is returned for a spec excluding a card every
	// deck plays.
	ErrImpossibleExclusion = errors.New("exclusion of always-included card")
)

// Operator constrains the copy count of an include term.
type Operator string

const (
	OpPresent Operator = ""
	OpEqual   Operator = "="
	OpAtLeast Operator = ">="
)

// Term is one include or exclude constraint. A term without an operator
// matches any deck playing the card.
type Term struct {
	CardID   string   `json:"cardId"`
	Operator Operator `json:"operator,omitempty"`
	Count    int      `json:"count,omitempty"`
}

// Present returns a bare presence term.
func Present(cardID string) Term { return Term{CardID: cardID} }

// Exactly returns a term matching decks with exactly n copies.
func Exactly(cardID string, n int) Term {
	return Term{CardID: cardID, Operator: OpEqual, Count: n}
}

// AtLeast returns a term matching decks with n or more copies.
func AtLeast(cardID string, n int) Term {
	return Term{CardID: cardID, Operator: OpAtLeast, Count: n}
}

// idEscaper backslash-escapes the characters that delimit terms, operators
// and key sections, so any card id survives Term.String and ParseTerm.
var idEscaper = strings.NewReplacer(
	`\`, `\\`, ",", `\,`, "|", `\|`, ";", `\;`, "=", `\=`, ">", `\>`,
)

// String formats the term as it appears in spec keys and query strings.
// Reserved characters in the card id are escaped with a backslash.
func (t Term) String() string {
	id := idEscaper.Replace(t.CardID)
	if t.Operator == OpPresent {
		return id
	}
	return id + string(t.Operator) + strconv.Itoa(t.Count)
}

func unescapeID(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// splitUnescaped splits s on every sep not escaped by a backslash. Escapes
// are kept in the parts.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// operatorIndex returns where the operator of an escaped term starts, or -1
// for a presence term.
func operatorIndex(s string) (int, Operator) {
	eq, gt := -1, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '>':
			gt = i
		case '=':
			eq = i
		}
	}
	switch {
	case eq < 0:
		return -1, OpPresent
	case gt == eq-1:
		return gt, OpAtLeast
	default:
		return eq, OpEqual
	}
}

// Matches reports whether a deck holding n copies satisfies the term.
func (t Term) Matches(n int) bool {
	if n <= 0 {
		return false
	}
	switch t.Operator {
	case OpEqual:
		return n == t.Count
	case OpAtLeast:
		return n >= t.Count
	default:
		return true
	}
}

// ParseTerm is the inverse of Term.String.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Term{}, fmt.Errorf("%w: empty", ErrInvalidTerm)
	}

	i, op := operatorIndex(s)
	if op == OpPresent {
		return Present(unescapeID(s)), nil
	}

	id := unescapeID(strings.TrimSpace(s[:i]))
	n, err := strconv.Atoi(strings.TrimSpace(s[i+len(op):]))
	if err != nil || id == "" || n < 1 {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
	}
	return Term{CardID: id, Operator: op, Count: n}, nil
}

// Spec is a set of include and exclude terms.
type Spec struct {
	Include []Term `json:"include"`
	Exclude []Term `json:"exclude"`
}

// Key returns the canonical form of the spec. Include and exclude terms are
// sorted independently, so term order never changes the key.
func (s Spec) Key() string {
	return "in:" + joinSorted(s.Include) + ";ex:" + joinSorted(s.Exclude)
}

func joinSorted(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// IsEmpty reports whether the spec has no terms.
func (s Spec) IsEmpty() bool {
	return len(s.Include) == 0 && len(s.Exclude) == 0
}

// ParseKey is the inverse of Spec.Key.
func ParseKey(key string) (Spec, error) {
	sections := splitUnescaped(key, ';')
	if len(sections) != 2 || !strings.HasPrefix(sections[0], "in:") || !strings.HasPrefix(sections[1], "ex:") {
		return Spec{}, fmt.Errorf("%w: malformed key %q", ErrInvalidTerm, key)
	}

	include, err := ParseTerms(strings.TrimPrefix(sections[0], "in:"), '|')
	if err != nil {
		return Spec{}, err
	}
	exclude, err := ParseTerms(strings.TrimPrefix(sections[1], "ex:"), '|')
	if err != nil {
		return Spec{}, err
	}
	return Spec{Include: include, Exclude: exclude}, nil
}

// ParseTerms splits s on every unescaped sep and parses every non-empty
// part.
func ParseTerms(s string, sep byte) ([]Term, error) {
	terms := []Term{}
	for _, part := range splitUnescaped(s, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseTerm(part)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}
