package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rosematcha/ciphermaniac-sub006/internal/api/response"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/pipeline"
	"github.com/rosematcha/ciphermaniac-sub006/internal/subsets"
)

// ReportService answers archetype report queries.
type ReportService interface {
	Archetypes() []pipeline.ArchetypeSummary
	Report(ctx context.Context, archetype string, spec filters.Spec) (pipeline.Answer, error)
}

// ArchetypeHandler handles archetype report requests.
type ArchetypeHandler struct {
	service ReportService
}

// NewArchetypeHandler creates a new ArchetypeHandler.
func NewArchetypeHandler(service ReportService) *ArchetypeHandler {
	return &ArchetypeHandler{service: service}
}

// ReportResponse is the payload of report and subset requests.
type ReportResponse struct {
	Report    *subsets.SubsetReport `json:"report"`
	SubsetID  string                `json:"subsetId,omitempty"`
	Status    string                `json:"status"`
	Unchanged bool                  `json:"unchanged"`
}

// ListArchetypes returns every archetype with its deck count.
func (h *ArchetypeHandler) ListArchetypes(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.service.Archetypes())
}

// GetReport returns the unfiltered report of one archetype.
func (h *ArchetypeHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, filters.Spec{})
}

// GetSubset returns the report of the decks matching the include and
// exclude query parameters, e.g.
// ?include=Iono::PAL::185=2,Arven::SVI::166&exclude=Nest+Ball::SVI::181.
// A "key" parameter holding a filter key is accepted instead.
func (h *ArchetypeHandler) GetSubset(w http.ResponseWriter, r *http.Request) {
	spec, err := ParseSpec(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	if spec.IsEmpty() {
		response.BadRequest(w, errors.New("at least one include or exclude filter is required"))
		return
	}
	h.answer(w, r, spec)
}

func (h *ArchetypeHandler) answer(w http.ResponseWriter, r *http.Request, spec filters.Spec) {
	archetype := chi.URLParam(r, "archetype")

	answer, err := h.service.Report(r.Context(), archetype, spec)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	response.Success(w, ReportResponse{
		Report:    answer.Report,
		SubsetID:  answer.SubsetID,
		Status:    answer.Status,
		Unchanged: answer.Unchanged,
	})
}

// ParseSpec reads a filter spec from the request query: either a spec key
// in "key", or comma-separated "include" and "exclude" terms. A card id
// containing one of `,|;=>\` escapes it with a backslash.
func ParseSpec(r *http.Request) (filters.Spec, error) {
	q := r.URL.Query()
	if key := q.Get("key"); key != "" {
		return filters.ParseKey(key)
	}

	include, err := filters.ParseTerms(strings.Join(q["include"], ","), ',')
	if err != nil {
		return filters.Spec{}, err
	}
	exclude, err := filters.ParseTerms(strings.Join(q["exclude"], ","), ',')
	if err != nil {
		return filters.Spec{}, err
	}
	for _, t := range exclude {
		if t.Operator != filters.OpPresent {
			return filters.Spec{}, errors.New("exclude filters cannot carry a count")
		}
	}
	return filters.Spec{Include: include, Exclude: exclude}, nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownArchetype),
		errors.Is(err, pipeline.ErrEmptySubset):
		response.NotFound(w, err)
	case errors.Is(err, filters.ErrInvalidTerm),
		errors.Is(err, filters.ErrUnknownCard):
		response.BadRequest(w, err)
	case errors.Is(err, filters.ErrImpossibleExclusion),
		errors.Is(err, pipeline.ErrSubsetTooSmall):
		response.UnprocessableEntity(w, err)
	case errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, err)
	default:
		response.InternalError(w, err)
	}
}
