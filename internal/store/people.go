package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"interview-insights-go/internal/types"
)

type PersonRepo struct {
	db *gorm.DB
}

// InsertIfAbsent inserts p unless a row already holds one of its unique keys.
// It reports whether a row was written; on false p.ID does not exist.
func (r *PersonRepo) InsertIfAbsent(ctx context.Context, p *types.Person) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PersonRepo) FindByIdentity(ctx context.Context, accountID uuid.UUID, nameHash, companyKey, emailKey string) (*types.Person, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Where("account_id = ? AND name_hash = ? AND company_key = ? AND email_key = ?", accountID, nameHash, companyKey, emailKey))
}

// FindByNameCompany ignores email and returns the oldest match.
func (r *PersonRepo) FindByNameCompany(ctx context.Context, accountID uuid.UUID, nameHash, companyKey string) (*types.Person, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Where("account_id = ? AND name_hash = ? AND company_key = ?", accountID, nameHash, companyKey).
		Order("created_at ASC, id ASC"))
}

func (r *PersonRepo) FindByPlatform(ctx context.Context, accountID uuid.UUID, platform, platformUserID string) (*types.Person, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Where("account_id = ? AND platform = ? AND platform_user_id = ?", accountID, platform, platformUserID))
}

// Get loads a person scoped to an account.
func (r *PersonRepo) Get(ctx context.Context, accountID, id uuid.UUID) (*types.Person, error) {
	p, err := r.first(ctx, r.db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("people.get", gorm.ErrRecordNotFound)
	}
	return p, nil
}

func (r *PersonRepo) first(ctx context.Context, q *gorm.DB) (*types.Person, error) {
	var p types.Person
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByAccount lists an account's people, optionally narrowed to a project.
func (r *PersonRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, projectID *uuid.UUID) ([]types.Person, error) {
	var out []types.Person
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// ListByProject lists the people who took part in any interview of the project.
func (r *PersonRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]types.Person, error) {
	var out []types.Person
	linked := r.db.WithContext(ctx).Model(&types.InterviewPerson{}).Select("person_id").Where("project_id = ?", projectID)
	err := r.db.WithContext(ctx).Where("id IN (?)", linked).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *PersonRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&types.Person{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PersonRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&types.Person{})
	return res.RowsAffected, res.Error
}

// LinkInterview records participation. An existing link is left untouched.
func (r *PersonRepo) LinkInterview(ctx context.Context, link *types.InterviewPerson) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PersonRepo) ListInterviewLinks(ctx context.Context, personID uuid.UUID) ([]types.InterviewPerson, error) {
	var out []types.InterviewPerson
	err := r.db.WithContext(ctx).Where("person_id = ?", personID).Order("id ASC").Find(&out).Error
	return out, err
}

// MoveInterviewLinks reassigns fromID's participation links to toID. Links
// toID already holds for the same interview are dropped, not duplicated.
func (r *PersonRepo) MoveInterviewLinks(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	held := db.Model(&types.InterviewPerson{}).Select("interview_id").Where("person_id = ?", toID)
	if err := db.Where("person_id = ? AND interview_id IN (?)", fromID, held).
		Delete(&types.InterviewPerson{}).Error; err != nil {
		return 0, err
	}
	res := db.Model(&types.InterviewPerson{}).Where("person_id = ?", fromID).Update("person_id", toID)
	return res.RowsAffected, res.Error
}

// LinkFacets inserts person ↔ facet links, skipping existing ones. It returns
// the number of new links.
func (r *PersonRepo) LinkFacets(ctx context.Context, links []*types.PersonFacet) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(links, 200)
	return res.RowsAffected, res.Error
}

func (r *PersonRepo) MoveFacetLinks(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	held := db.Model(&types.PersonFacet{}).Select("facet_id").Where("person_id = ?", toID)
	if err := db.Where("person_id = ? AND facet_id IN (?)", fromID, held).
		Delete(&types.PersonFacet{}).Error; err != nil {
		return 0, err
	}
	res := db.Model(&types.PersonFacet{}).Where("person_id = ?", fromID).Update("person_id", toID)
	return res.RowsAffected, res.Error
}

func (r *PersonRepo) CountInterviewLinks(ctx context.Context, personID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&types.InterviewPerson{}).Where("person_id = ?", personID).Count(&n).Error
	return n, err
}

func (r *PersonRepo) CountFacetLinks(ctx context.Context, personID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&types.PersonFacet{}).Where("person_id = ?", personID).Count(&n).Error
	return n, err
}
