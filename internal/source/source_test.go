package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

type fakeSource struct {
	tournaments []Tournament
	skipped     []Failure
	listErr     error
	decks       map[string][]decks.RawDeck
	errs        map[string]error
}

func (f *fakeSource) ListTournaments(ctx context.Context, since time.Time) ([]Tournament, []Failure, error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	var out []Tournament
	for _, t := range f.tournaments {
		if !t.Date.Before(since) {
			out = append(out, t)
		}
	}
	return out, f.skipped, nil
}

func (f *fakeSource) FetchDecks(ctx context.Context, t Tournament) ([]decks.RawDeck, error) {
	if err := f.errs[t.ID]; err != nil {
		return nil, err
	}
	return f.decks[t.ID], nil
}

func rawDeck(player string, cards ...decks.RawCard) decks.RawDeck {
	return decks.RawDeck{Player: player, Archetype: "Gardevoir ex", Cards: cards}
}

func TestIngest(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		tournaments: []Tournament{
			{ID: "a", Date: day.AddDate(0, 0, 2)},
			{ID: "b", Date: day.AddDate(0, 0, 1)},
			{ID: "old", Date: day.AddDate(0, 0, -30)},
		},
		decks: map[string][]decks.RawDeck{
			"a": {
				rawDeck("p1", decks.RawCard{Count: 4, Name: "Iono", Set: "PAL", Number: "185"}),
				rawDeck("p2"),
				rawDeck("p3", decks.RawCard{Count: 0, Name: "Iono"}),
			},
		},
		errs: map[string]error{"b": errors.New("boom")},
	}

	result, err := Ingest(context.Background(), src, day, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Tournaments)
	require.Len(t, result.Decks, 1)
	assert.Equal(t, "a", result.Decks[0].TournamentID)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, map[string]int{"empty": 1, "invalid_count": 1}, result.Reasons)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "b", result.Failures[0].Tournament.ID)
	assert.Equal(t, "boom", result.Failures[0].Err)
}

func TestIngest_SkippedRecordsAreFailures(t *testing.T) {
	src := &fakeSource{
		tournaments: []Tournament{{ID: "good"}},
		skipped:     []Failure{{Tournament: Tournament{ID: "bad"}, Err: `unrecognized date "soon"`}},
		decks: map[string][]decks.RawDeck{
			"good": {rawDeck("p1", decks.RawCard{Count: 4, Name: "Iono", Set: "PAL", Number: "185"})},
		},
	}

	result, err := Ingest(context.Background(), src, time.Time{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tournaments)
	assert.Len(t, result.Decks, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad", result.Failures[0].Tournament.ID)
}

func TestIngest_ListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("down")}
	_, err := Ingest(context.Background(), src, time.Time{}, nil, nil)
	assert.Error(t, err)
}

func TestIngest_Cancelled(t *testing.T) {
	src := &fakeSource{
		tournaments: []Tournament{{ID: "a"}},
		errs:        map[string]error{"a": context.Canceled},
	}
	_, err := Ingest(context.Background(), src, time.Time{}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Ingest(ctx, &fakeSource{tournaments: []Tournament{{ID: "a"}}}, time.Time{}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
