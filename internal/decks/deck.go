// Package decks builds immutable, content-addressed decks from raw decklists
// and groups them by archetype.
package decks

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
)

var (
	// ErrInvalidCount is returned for a decklist line with a count below one.
	ErrInvalidCount = errors.New("card count must be positive")
	// ErrEmptyDeck is returned for a decklist without cards.
	ErrEmptyDeck = errors.New("deck has no cards")
)

// RawCard is one decklist line as read from the source.
type RawCard struct {
	Count    int            `json:"count"`
	Name     string         `json:"name"`
	Set      string         `json:"set,omitempty"`
	Number   string         `json:"number,omitempty"`
	Category cards.Category `json:"category"`
}

// RawDeck is a decklist before canonicalization.
type RawDeck struct {
	Player       string    `json:"player"`
	Placement    int       `json:"placement,omitempty"`
	Archetype    string    `json:"archetype"`
	TournamentID string    `json:"tournamentId"`
	Cards        []RawCard `json:"cards"`
}

// CardEntry is a canonicalized decklist line.
type CardEntry struct {
	Count    int            `json:"count"`
	Identity cards.Identity `json:"identity"`
	Category cards.Category `json:"category"`
}

// Deck is an immutable, canonicalized decklist. ID is derived from the card
// list alone so the same list ingested twice gets the same ID.
type Deck struct {
	ID           string      `json:"id"`
	Player       string      `json:"player,omitempty"`
	Placement    int         `json:"placement,omitempty"`
	Archetype    string      `json:"archetype"`
	TournamentID string      `json:"tournamentId"`
	Cards        []CardEntry `json:"cards"`
}

// NewDeck canonicalizes raw, resolves reprints through table and computes the
// deck ID. table may be nil.
func NewDeck(raw RawDeck, table *cards.SynonymTable) (*Deck, error) {
	if len(raw.Cards) == 0 {
		return nil, ErrEmptyDeck
	}

	entries := make([]CardEntry, 0, len(raw.Cards))
	for _, c := range raw.Cards {
		if c.Count <= 0 {
			return nil, fmt.Errorf("%w: %q has count %d", ErrInvalidCount, c.Name, c.Count)
		}
		id := cards.ResolveCanonical(cards.Canonicalize(c.Name, c.Set, c.Number), table)
		if id.Name == "" {
			continue
		}
		entries = append(entries, CardEntry{Count: c.Count, Identity: id, Category: c.Category})
	}
	if len(entries) == 0 {
		return nil, ErrEmptyDeck
	}

	deckID, err := ComputeID(entries)
	if err != nil {
		return nil, err
	}

	return &Deck{
		ID:           deckID,
		Player:       raw.Player,
		Placement:    raw.Placement,
		Archetype:    NormalizeArchetype(raw.Archetype),
		TournamentID: raw.TournamentID,
		Cards:        entries,
	}, nil
}

// ComputeID hashes the sorted "<count>x<key>" tuples of a card list. Lines
// sharing a canonical key are summed first.
func ComputeID(entries []CardEntry) (string, error) {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.Identity.Key()] += e.Count
	}

	tuples := make([]string, 0, len(counts))
	for key, n := range counts {
		tuples = append(tuples, fmt.Sprintf("%dx%s", n, key))
	}
	sort.Strings(tuples)

	data, err := json.Marshal(tuples)
	if err != nil {
		return "", fmt.Errorf("encode deck tuples: %w", err)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Counts returns the per-card totals of the deck keyed by canonical key, with
// duplicate lines summed.
func (d *Deck) Counts() map[string]int {
	counts := make(map[string]int, len(d.Cards))
	for _, e := range d.Cards {
		counts[e.Identity.Key()] += e.Count
	}
	return counts
}

// Size returns the number of cards in the deck.
func (d *Deck) Size() int {
	n := 0
	for _, e := range d.Cards {
		n += e.Count
	}
	return n
}

// ResolveAll re-resolves the card identities of already canonical decks
// through table, e.g. after the synonym table changed. Decks whose cards are
// unaffected are returned as is.
func ResolveAll(all []*Deck, table *cards.SynonymTable) []*Deck {
	out := make([]*Deck, 0, len(all))
	for _, d := range all {
		changed := false
		entries := make([]CardEntry, len(d.Cards))
		for i, e := range d.Cards {
			e.Identity = cards.ResolveCanonical(e.Identity, table)
			if e.Identity != d.Cards[i].Identity {
				changed = true
			}
			entries[i] = e
		}
		if !changed {
			out = append(out, d)
			continue
		}

		id, err := ComputeID(entries)
		if err != nil {
			out = append(out, d)
			continue
		}
		resolved := *d
		resolved.ID = id
		resolved.Cards = entries
		out = append(out, &resolved)
	}
	return out
}
