package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/types"
)

// EvidenceBundle is one evidence row with the facets that hang off it.
type EvidenceBundle struct {
	Evidence *types.Evidence
	Facets   []*types.EvidenceFacet
}

type EvidenceRepo struct {
	db *gorm.DB
}

// ReplaceForInterview deletes the interview's evidence, facets and their
// person links, then inserts the new set. Everything happens in one
// transaction: callers see either the old set or the new one.
func (r *EvidenceRepo) ReplaceForInterview(ctx context.Context, interview *types.Interview, bundles []EvidenceBundle) (int, error) {
	var evidence []*types.Evidence
	var facets []*types.EvidenceFacet
	for _, b := range bundles {
		if b.Evidence == nil {
			continue
		}
		ev := b.Evidence
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		ev.InterviewID = interview.ID
		ev.AccountID = interview.AccountID
		ev.ProjectID = interview.ProjectID
		evidence = append(evidence, ev)
		for _, f := range b.Facets {
			if f == nil {
				continue
			}
			if f.ID == uuid.Nil {
				f.ID = uuid.New()
			}
			f.EvidenceID = ev.ID
			f.InterviewID = interview.ID
			f.ProjectID = interview.ProjectID
			f.AccountID = interview.AccountID
			facets = append(facets, f)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facetIDs := tx.Model(&types.EvidenceFacet{}).Select("id").Where("interview_id = ?", interview.ID)
		if err := tx.Where("facet_id IN (?)", facetIDs).Delete(&types.PersonFacet{}).Error; err != nil {
			return fmt.Errorf("delete person facets: %w", err)
		}
		if err := tx.Where("interview_id = ?", interview.ID).Delete(&types.EvidenceFacet{}).Error; err != nil {
			return fmt.Errorf("delete facets: %w", err)
		}
		if err := tx.Where("interview_id = ?", interview.ID).Delete(&types.Evidence{}).Error; err != nil {
			return fmt.Errorf("delete evidence: %w", err)
		}
		if len(evidence) > 0 {
			if err := tx.CreateInBatches(evidence, 100).Error; err != nil {
				return fmt.Errorf("insert evidence: %w", err)
			}
		}
		if len(facets) > 0 {
			if err := tx.CreateInBatches(facets, 100).Error; err != nil {
				return fmt.Errorf("insert facets: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.E(apperr.KindTransaction, "evidence.replace", err)
	}
	return len(evidence), nil
}

func (r *EvidenceRepo) ListByInterview(ctx context.Context, interviewID uuid.UUID) ([]types.Evidence, error) {
	var out []types.Evidence
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *EvidenceRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Evidence, error) {
	return findByIDs[types.Evidence](ctx, r.db, ids)
}

// LinkSpeaker points every evidence row spoken under label at personID.
func (r *EvidenceRepo) LinkSpeaker(ctx context.Context, interviewID uuid.UUID, speakerLabel string, personID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&types.Evidence{}).
		Where("interview_id = ? AND speaker_label = ?", interviewID, speakerLabel).
		Update("person_id", personID)
	return res.RowsAffected, res.Error
}

func (r *EvidenceRepo) CountByPerson(ctx context.Context, personID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&types.Evidence{}).Where("person_id = ?", personID).Count(&n).Error
	return n, err
}

func (r *EvidenceRepo) CountByInterview(ctx context.Context, interviewID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&types.Evidence{}).Where("interview_id = ?", interviewID).Count(&n).Error
	return n, err
}

// RepointPerson moves every evidence link from one person to another.
func (r *EvidenceRepo) RepointPerson(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&types.Evidence{}).
		Where("person_id = ?", fromID).
		Update("person_id", toID)
	return res.RowsAffected, res.Error
}
