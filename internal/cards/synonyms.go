package cards

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymTable maps non-canonical card keys to the key of their canonical
// printing. A table is read-only once built; the zero value is empty.
type SynonymTable struct {
	synonyms   map[string]string
	canonicals map[string]string
}

// SynonymFile is the on-disk shape of a synonyms file.
type SynonymFile struct {
	Synonyms   map[string]string `json:"synonyms" yaml:"synonyms"`
	Canonicals map[string]string `json:"canonicals,omitempty" yaml:"canonicals,omitempty"`
}

// NewSynonymTable builds a table from a synonym map and an optional
// name -> canonical key map. Self-mappings are dropped.
func NewSynonymTable(synonyms, canonicals map[string]string) *SynonymTable {
	t := &SynonymTable{
		synonyms:   make(map[string]string, len(synonyms)),
		canonicals: make(map[string]string, len(canonicals)),
	}
	for from, to := range synonyms {
		from, to = normalizeKey(from), normalizeKey(to)
		if from == "" || to == "" || from == to {
			continue
		}
		t.synonyms[from] = to
	}
	for name, key := range canonicals {
		t.canonicals[strings.TrimSpace(name)] = normalizeKey(key)
	}
	return t
}

// normalizeKey canonicalizes the set and number parts of a key so that
// hand-written files may use "PAR::72" or "par::072".
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return ParseKey(key).Key()
}

// Lookup returns the canonical key for a non-canonical key.
func (t *SynonymTable) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	canonical, ok := t.synonyms[key]
	return canonical, ok
}

// CanonicalFor returns the canonical key recorded for a card name.
func (t *SynonymTable) CanonicalFor(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	key, ok := t.canonicals[name]
	return key, ok
}

// Len returns the number of synonym mappings.
func (t *SynonymTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.synonyms)
}

// Merge returns a new table with other's entries layered over t's.
func (t *SynonymTable) Merge(other *SynonymTable) *SynonymTable {
	merged := &SynonymTable{
		synonyms:   make(map[string]string),
		canonicals: make(map[string]string),
	}
	for _, src := range []*SynonymTable{t, other} {
		if src == nil {
			continue
		}
		for k, v := range src.synonyms {
			merged.synonyms[k] = v
		}
		for k, v := range src.canonicals {
			merged.canonicals[k] = v
		}
	}
	return merged
}

// File returns the table in its file shape.
func (t *SynonymTable) File() SynonymFile {
	f := SynonymFile{Synonyms: map[string]string{}, Canonicals: map[string]string{}}
	if t == nil {
		return f
	}
	for k, v := range t.synonyms {
		f.Synonyms[k] = v
	}
	for k, v := range t.canonicals {
		f.Canonicals[k] = v
	}
	return f
}

// ParseSynonyms decodes a synonyms document. YAML is used when format is
// "yaml" or "yml", JSON otherwise.
func ParseSynonyms(data []byte, format string) (*SynonymTable, error) {
	var f SynonymFile
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse synonyms yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse synonyms json: %w", err)
		}
	}
	return NewSynonymTable(f.Synonyms, f.Canonicals), nil
}

// LoadSynonyms reads a synonyms file and layers it over DefaultReprints.
// An empty path yields the built-in table alone.
func LoadSynonyms(path string) (*SynonymTable, error) {
	base := DefaultReprints()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	table, err := ParseSynonyms(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return base.Merge(table), nil
}
