package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"interview-insights-go/internal/types"
)

type FacetRepo struct {
	db *gorm.DB
}

// FacetFilter narrows facet listings. Empty fields do not filter.
type FacetFilter struct {
	ProjectID   uuid.UUID
	InterviewID uuid.UUID
	KindSlugs   []string
}

func (f FacetFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ProjectID != uuid.Nil {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.InterviewID != uuid.Nil {
		q = q.Where("interview_id = ?", f.InterviewID)
	}
	if len(f.KindSlugs) > 0 {
		q = q.Where("kind_slug IN ?", f.KindSlugs)
	}
	return q
}

// ListMissingEmbeddings returns facets whose embedding is still NULL, oldest first.
func (r *FacetRepo) ListMissingEmbeddings(ctx context.Context, filter FacetFilter) ([]types.EvidenceFacet, error) {
	var out []types.EvidenceFacet
	q := filter.apply(r.db.WithContext(ctx).Model(&types.EvidenceFacet{}))
	err := q.Where("embedding IS NULL").Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// ListEmbedded returns facets of one kind that carry an embedding, ordered by id.
func (r *FacetRepo) ListEmbedded(ctx context.Context, projectID uuid.UUID, kindSlug string) ([]types.EvidenceFacet, error) {
	var out []types.EvidenceFacet
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind_slug = ? AND embedding IS NOT NULL", projectID, kindSlug).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *FacetRepo) ListByInterview(ctx context.Context, interviewID uuid.UUID) ([]types.EvidenceFacet, error) {
	var out []types.EvidenceFacet
	err := r.db.WithContext(ctx).Where("interview_id = ?", interviewID).Order("id ASC").Find(&out).Error
	return out, err
}

// SaveEmbedding writes only the embedding columns of one facet.
func (r *FacetRepo) SaveEmbedding(ctx context.Context, id uuid.UUID, vec types.Vector, model string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&types.EvidenceFacet{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":              vec,
			"embedding_model":        model,
			"embedding_generated_at": at,
		}).Error
}

// PersonFacetRow pairs a facet with the person linked to its evidence.
type PersonFacetRow struct {
	FacetID   uuid.UUID
	PersonID  uuid.UUID
	ProjectID uuid.UUID
}

// ListPersonFacetPairs derives person ↔ facet pairs through evidence.person_id.
func (r *FacetRepo) ListPersonFacetPairs(ctx context.Context, projectID, interviewID, personID uuid.UUID) ([]PersonFacetRow, error) {
	var out []PersonFacetRow
	q := r.db.WithContext(ctx).
		Table("evidence_facets AS f").
		Select("f.id AS facet_id, e.person_id AS person_id, f.project_id AS project_id").
		Joins("JOIN evidence AS e ON e.id = f.evidence_id").
		Where("f.project_id = ? AND e.person_id IS NOT NULL", projectID)
	if interviewID != uuid.Nil {
		q = q.Where("f.interview_id = ?", interviewID)
	}
	if personID != uuid.Nil {
		q = q.Where("e.person_id = ?", personID)
	}
	err := q.Order("f.id ASC").Scan(&out).Error
	return out, err
}
