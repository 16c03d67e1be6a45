// Package cards canonicalizes card identities across printings and reprints.
package cards

import (
	"regexp"
	"strings"
)

// keySeparator joins name, set and number in a canonical key.
const keySeparator = "::"

// numberPattern matches collector numbers such as "7", "007" or "118a".
var numberPattern = regexp.MustCompile(`^(\d+)([A-Z]*)$`)

// Identity identifies one printing of a card. Set and Number are empty when
// the decklist did not carry them.
type Identity struct {
	Name   string `json:"name"`
	Set    string `json:"set,omitempty"`
	Number string `json:"number,omitempty"`
}

// HasPrint reports whether both set and number are known.
func (id Identity) HasPrint() bool {
	return id.Set != "" && id.Number != ""
}

// Key returns the canonical key: name::SET::NUM when the printing is known,
// otherwise the bare name.
func (id Identity) Key() string {
	if !id.HasPrint() {
		return id.Name
	}
	return id.Name + keySeparator + id.Set + keySeparator + id.Number
}

func (id Identity) String() string {
	return id.Key()
}

// NormalizeNumber normalizes a collector number to at least three digits,
// keeping any trailing letter suffix in upper case. Numbers that are not
// digits-plus-letters are returned upper-cased and otherwise untouched.
func NormalizeNumber(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	digits := strings.TrimLeft(m[1], "0")
	for len(digits) < 3 {
		digits = "0" + digits
	}
	return digits + m[2]
}

// Canonicalize derives a normalized Identity from raw decklist fields.
// Applying it to an already canonical identity returns it unchanged.
func Canonicalize(name, set, number string) Identity {
	return Identity{
		Name:   strings.TrimSpace(name),
		Set:    strings.ToUpper(strings.TrimSpace(set)),
		Number: NormalizeNumber(number),
	}
}

// ParseKey is the inverse of Identity.Key.
func ParseKey(key string) Identity {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 3 {
		return Identity{Name: key}
	}
	return Canonicalize(parts[0], parts[1], parts[2])
}

// ResolveCanonical maps a reprint onto its canonical printing using the
// synonym table. Identities without an entry are returned unchanged, as is
// everything when the table is nil.
func ResolveCanonical(id Identity, table *SynonymTable) Identity {
	if table == nil {
		return id
	}
	canonical, ok := table.Lookup(id.Key())
	if !ok {
		return id
	}
	resolved := ParseKey(canonical)
	if resolved.Name == "" {
		return id
	}
	return resolved
}
