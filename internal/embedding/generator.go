package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
)

// FacetStore is the slice of the facet repository the generator needs.
type FacetStore interface {
	ListMissingEmbeddings(ctx context.Context, filter store.FacetFilter) ([]types.EvidenceFacet, error)
	SaveEmbedding(ctx context.Context, id uuid.UUID, vec types.Vector, model string, at time.Time) error
}

type BackfillInput struct {
	ProjectID uuid.UUID
	KindSlugs []string
}

// Report summarizes one run. Errors holds at most maxReportedErrors messages.
type Report struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

const maxReportedErrors = 20

type Generator struct {
	facets        FacetStore
	embedder      Embedder
	batchSize     int
	delay         time.Duration
	dimension     int
	kinds         []string
	freeTextKinds map[string]bool
	now           func() time.Time
	log           *logger.Logger
}

func NewGenerator(facets FacetStore, embedder Embedder, cfg config.Embedding, log *logger.Logger) *Generator {
	ft := map[string]bool{}
	for _, k := range cfg.FreeTextKinds {
		ft[k] = true
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = 10
	}
	return &Generator{
		facets:        facets,
		embedder:      embedder,
		batchSize:     size,
		delay:         cfg.BatchDelay(),
		dimension:     cfg.Dimension,
		kinds:         cfg.Kinds,
		freeTextKinds: ft,
		now:           time.Now,
		log:           log.Component("embedding"),
	}
}

// Backfill embeds every facet of the project still missing a vector. Item
// failures are counted in the report and never abort the run.
func (g *Generator) Backfill(ctx context.Context, in BackfillInput) (Report, error) {
	kinds := in.KindSlugs
	if len(kinds) == 0 {
		kinds = g.kinds
	}
	return g.run(ctx, store.FacetFilter{ProjectID: in.ProjectID, KindSlugs: kinds})
}

// GenerateForInterview embeds the configured kinds of one interview's facets.
func (g *Generator) GenerateForInterview(ctx context.Context, interviewID uuid.UUID) (Report, error) {
	return g.run(ctx, store.FacetFilter{InterviewID: interviewID, KindSlugs: g.kinds})
}

func (g *Generator) run(ctx context.Context, filter store.FacetFilter) (Report, error) {
	facets, err := g.facets.ListMissingEmbeddings(ctx, filter)
	if err != nil {
		return Report{}, fmt.Errorf("list facets missing embeddings: %w", err)
	}

	rep := Report{Total: len(facets)}
	if len(facets) == 0 {
		return rep, nil
	}

	log := g.log.WithField("project_id", filter.ProjectID).
		WithField("interview_id", filter.InterviewID).
		WithField("total", rep.Total)
	log.Info("embedding facets")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if g.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(g.delay), 1)
	}

	var mu sync.Mutex
	record := func(f types.EvidenceFacet, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			rep.Succeeded++
			return
		}
		rep.Failed++
		if len(rep.Errors) < maxReportedErrors {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", f.ID, err))
		}
		log.WithField("facet_id", f.ID).WithError(err).Warn("facet embedding failed")
	}

	for start := 0; start < len(facets); start += g.batchSize {
		if err := limiter.Wait(ctx); err != nil {
			return rep, err
		}
		end := start + g.batchSize
		if end > len(facets) {
			end = len(facets)
		}

		var eg errgroup.Group
		for _, f := range facets[start:end] {
			eg.Go(func() error {
				record(f, g.embedOne(ctx, f))
				return nil
			})
		}
		_ = eg.Wait()

		if err := ctx.Err(); err != nil {
			return rep, err
		}
	}

	log.WithField("succeeded", rep.Succeeded).WithField("failed", rep.Failed).Info("embedding finished")
	return rep, nil
}

func (g *Generator) embedOne(ctx context.Context, f types.EvidenceFacet) error {
	vecs, err := g.embedder.Embed(ctx, []string{g.text(f)})
	if err != nil {
		return apperr.E(apperr.KindPartialBatch, "embedding.item", err)
	}
	if len(vecs) != 1 {
		return apperr.Errorf(apperr.KindPartialBatch, "embedding.item", "expected 1 vector, got %d", len(vecs))
	}
	if g.dimension > 0 && len(vecs[0]) != g.dimension {
		return apperr.Errorf(apperr.KindPartialBatch, "embedding.item", "dimension %d, want %d", len(vecs[0]), g.dimension)
	}
	if err := g.facets.SaveEmbedding(ctx, f.ID, types.Vector(vecs[0]), g.embedder.Model(), g.now().UTC()); err != nil {
		return apperr.E(apperr.KindPartialBatch, "embedding.save", err)
	}
	return nil
}

// text is the label, or "label: free_text" for free-text kinds.
func (g *Generator) text(f types.EvidenceFacet) string {
	if g.freeTextKinds[f.KindSlug] && f.FreeText != nil && strings.TrimSpace(*f.FreeText) != "" {
		return f.Label + ": " + strings.TrimSpace(*f.FreeText)
	}
	return f.Label
}
