package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"interview-insights-go/internal/types"
)

type MergeRecordRepo struct {
	db *gorm.DB
}

func (r *MergeRecordRepo) Create(ctx context.Context, rec *types.PersonMergeRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *MergeRecordRepo) ListByTarget(ctx context.Context, targetID uuid.UUID) ([]types.PersonMergeRecord, error) {
	var out []types.PersonMergeRecord
	err := r.db.WithContext(ctx).
		Where("target_person_id = ?", targetID).
		Order("merged_at ASC").
		Find(&out).Error
	return out, err
}
