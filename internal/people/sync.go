package people

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
)

// FacetSyncer derives person ↔ facet links from evidence ownership.
type FacetSyncer struct {
	store *store.Store
	log   *logger.Logger
}

func NewFacetSyncer(s *store.Store, log *logger.Logger) *FacetSyncer {
	return &FacetSyncer{store: s, log: log.Component("person-facets")}
}

// Sync links each facet to the person who owns its evidence. Zero ids do not
// filter. Existing links are kept; the count of new links is returned.
func (f *FacetSyncer) Sync(ctx context.Context, projectID, interviewID, personID uuid.UUID) (int64, error) {
	rows, err := f.store.Facets().ListPersonFacetPairs(ctx, projectID, interviewID, personID)
	if err != nil {
		return 0, fmt.Errorf("list person facet pairs: %w", err)
	}
	links := make([]*types.PersonFacet, 0, len(rows))
	for _, r := range rows {
		links = append(links, &types.PersonFacet{PersonID: r.PersonID, FacetID: r.FacetID, ProjectID: r.ProjectID})
	}
	n, err := f.store.People().LinkFacets(ctx, links)
	if err != nil {
		return 0, fmt.Errorf("link facets: %w", err)
	}
	f.log.WithField("project_id", projectID).
		WithField("interview_id", interviewID).
		WithField("pairs", len(rows)).
		WithField("linked", n).
		Debug("person facets synced")
	return n, nil
}

// SyncFacetsHandler runs sync-person-facets jobs.
type SyncFacetsHandler struct {
	syncer *FacetSyncer
}

func NewSyncFacetsHandler(s *FacetSyncer) *SyncFacetsHandler {
	return &SyncFacetsHandler{syncer: s}
}

func (h *SyncFacetsHandler) Type() string { return types.JobSyncPersonFacets }

func (h *SyncFacetsHandler) Run(jc *jobs.JobContext) (any, error) {
	var p types.SyncFacetsPayload
	if err := jc.Decode(&p); err != nil {
		return nil, err
	}
	n, err := h.syncer.Sync(jc.Ctx, uuid.MustParse(p.ProjectID), parseOptional(p.InterviewID), parseOptional(p.PersonID))
	if err != nil {
		return nil, err
	}
	return map[string]int64{"linked": n}, nil
}

func parseOptional(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
