package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/pipeline"
	"github.com/rosematcha/ciphermaniac-sub006/internal/subsets"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// mockReportService is a mock implementation of the report service for testing.
type mockReportService struct {
	archetypes []pipeline.ArchetypeSummary
	answer     pipeline.Answer
	err        error

	gotArchetype string
	gotSpec      filters.Spec
}

func (m *mockReportService) Archetypes() []pipeline.ArchetypeSummary {
	return m.archetypes
}

func (m *mockReportService) Report(_ context.Context, archetype string, spec filters.Spec) (pipeline.Answer, error) {
	m.gotArchetype = archetype
	m.gotSpec = spec
	return m.answer, m.err
}

func newTestRouter(h *ArchetypeHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/archetypes", h.ListArchetypes)
	r.Get("/archetypes/{archetype}/report", h.GetReport)
	r.Get("/archetypes/{archetype}/subset", h.GetSubset)
	return r
}

func TestArchetypeHandler_ListArchetypes(t *testing.T) {
	mock := &mockReportService{archetypes: []pipeline.ArchetypeSummary{{Label: "Gardevoir ex", Slug: "Gardevoir_ex", Decks: 12}}}
	router := newTestRouter(NewArchetypeHandler(mock))

	req := httptest.NewRequest(http.MethodGet, "/archetypes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body struct {
		Data []pipeline.ArchetypeSummary `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Slug != "Gardevoir_ex" {
		t.Errorf("unexpected archetypes: %+v", body.Data)
	}
}

func TestArchetypeHandler_GetSubset(t *testing.T) {
	mock := &mockReportService{answer: pipeline.Answer{
		Report:   &subsets.SubsetReport{Report: usage.Report{DeckTotal: 6, Items: []usage.Item{}}},
		Status:   pipeline.StatusStored,
		SubsetID: "subset_001",
	}}
	router := newTestRouter(NewArchetypeHandler(mock))

	req := httptest.NewRequest(http.MethodGet, "/archetypes/Gardevoir_ex/subset?include=Iono::PAL::185%3D2,Arven::SVI::166&exclude=Nest+Ball::SVI::181", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if mock.gotArchetype != "Gardevoir_ex" {
		t.Errorf("expected archetype Gardevoir_ex, got %q", mock.gotArchetype)
	}
	want := "in:Arven::SVI::166|Iono::PAL::185=2;ex:Nest Ball::SVI::181"
	if got := mock.gotSpec.Key(); got != want {
		t.Errorf("expected spec %q, got %q", want, got)
	}

	var body struct {
		Data ReportResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Data.SubsetID != "subset_001" || body.Data.Status != pipeline.StatusStored {
		t.Errorf("unexpected response: %+v", body.Data)
	}
	if body.Data.Report.DeckTotal != 6 {
		t.Errorf("expected 6 decks, got %d", body.Data.Report.DeckTotal)
	}
}

func TestArchetypeHandler_GetSubset_Key(t *testing.T) {
	mock := &mockReportService{answer: pipeline.Answer{Report: &subsets.SubsetReport{}}}
	router := newTestRouter(NewArchetypeHandler(mock))

	req := httptest.NewRequest(http.MethodGet, "/archetypes/x/subset?key=in:A%3E%3D2%3Bex:B", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := mock.gotSpec.Key(); got != "in:A>=2;ex:B" {
		t.Errorf("unexpected spec %q", got)
	}
}

func TestArchetypeHandler_GetSubset_EscapedComma(t *testing.T) {
	mock := &mockReportService{answer: pipeline.Answer{Report: &subsets.SubsetReport{}}}
	router := newTestRouter(NewArchetypeHandler(mock))

	req := httptest.NewRequest(http.MethodGet, "/archetypes/x/subset?include=Boss%5C%2C+the+Orders%3D2,Iono", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	include := mock.gotSpec.Include
	if len(include) != 2 {
		t.Fatalf("expected 2 include terms, got %+v", include)
	}
	if include[0].CardID != "Boss, the Orders" || include[0].Count != 2 {
		t.Errorf("unexpected first term %+v", include[0])
	}
	if include[1].CardID != "Iono" {
		t.Errorf("unexpected second term %+v", include[1])
	}
}

func TestArchetypeHandler_GetSubset_BadRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no filters", ""},
		{"bad count", "?include=Iono=x"},
		{"count on exclude", "?exclude=Iono=2"},
		{"malformed key", "?key=nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(NewArchetypeHandler(&mockReportService{}))
			req := httptest.NewRequest(http.MethodGet, "/archetypes/x/subset"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestArchetypeHandler_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: x", pipeline.ErrUnknownArchetype), http.StatusNotFound},
		{pipeline.ErrEmptySubset, http.StatusNotFound},
		{fmt.Errorf("%w: x", filters.ErrUnknownCard), http.StatusBadRequest},
		{fmt.Errorf("%w: x", filters.ErrImpossibleExclusion), http.StatusUnprocessableEntity},
		{pipeline.ErrSubsetTooSmall, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newTestRouter(NewArchetypeHandler(&mockReportService{err: tt.err}))
			req := httptest.NewRequest(http.MethodGet, "/archetypes/x/report", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}
