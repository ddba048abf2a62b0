package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"interview-insights-go/internal/types"
)

type InterviewRepo struct {
	db *gorm.DB
}

func (r *InterviewRepo) Create(ctx context.Context, in *types.Interview) error {
	return r.db.WithContext(ctx).Create(in).Error
}

func (r *InterviewRepo) Get(ctx context.Context, id uuid.UUID) (*types.Interview, error) {
	var out types.Interview
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("interviews.get", err)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *InterviewRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&types.Interview{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("interviews.update", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *InterviewRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]types.Interview, error) {
	var out []types.Interview
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// MergeMetadata adds keys to processing_metadata and keeps the rest.
// Unreadable existing metadata is replaced.
func (r *InterviewRepo) MergeMetadata(ctx context.Context, id uuid.UUID, add map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var iv types.Interview
		err := tx.Select("id", "processing_metadata").Where("id = ?", id).First(&iv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("interviews.merge_metadata", err)
		}
		if err != nil {
			return err
		}
		meta := map[string]any{}
		if len(iv.ProcessingMetadata) > 0 {
			if err := json.Unmarshal(iv.ProcessingMetadata, &meta); err != nil {
				meta = map[string]any{}
			}
		}
		for k, v := range add {
			meta[k] = v
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Model(&types.Interview{}).Where("id = ?", id).Updates(map[string]any{
			"processing_metadata": datatypes.JSON(data),
			"updated_at":          time.Now(),
		}).Error
	})
}
