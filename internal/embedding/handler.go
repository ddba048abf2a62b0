package embedding

import (
	"github.com/google/uuid"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/types"
)

// BackfillHandler runs backfill-embeddings jobs. Per-facet failures end up in
// the report; the job only fails when listing or the context does.
type BackfillHandler struct {
	gen *Generator
}

func NewBackfillHandler(gen *Generator) *BackfillHandler {
	return &BackfillHandler{gen: gen}
}

func (h *BackfillHandler) Type() string { return types.JobBackfillEmbeddings }

func (h *BackfillHandler) Run(jc *jobs.JobContext) (any, error) {
	var p types.BackfillPayload
	if err := jc.Decode(&p); err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(p.ProjectID)
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, "embedding.backfill", err)
	}
	rep, err := h.gen.Backfill(jc.Ctx, BackfillInput{ProjectID: projectID, KindSlugs: p.KindSlugs})
	if err != nil {
		return nil, err
	}
	jc.Log.WithField("total", rep.Total).
		WithField("succeeded", rep.Succeeded).
		WithField("failed", rep.Failed).
		Info("backfill finished")
	return rep, nil
}
