package people

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
)

type MergeInput struct {
	AccountID uuid.UUID  `json:"account_id"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	SourceID  uuid.UUID  `json:"source_id"`
	TargetID  uuid.UUID  `json:"target_id"`
	Reason    string     `json:"reason,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	DryRun    bool       `json:"dry_run,omitempty"`
}

type Transferred struct {
	Evidence   int `json:"evidence"`
	Interviews int `json:"interviews"`
	Facets     int `json:"facets"`
}

type MergeResult struct {
	Transferred   Transferred `json:"transferred"`
	MergeRecordID uuid.UUID   `json:"merge_record_id"`
	DryRun        bool        `json:"dry_run,omitempty"`
}

var errDryRun = errors.New("dry run")

type Merger struct {
	store *store.Store
	now   func() time.Time
	log   *logger.Logger
}

func NewMerger(s *store.Store, log *logger.Logger) *Merger {
	return &Merger{store: s, now: time.Now, log: log.Component("person-merger")}
}

// Merge folds source into target in one transaction: evidence, interview
// participation and facet links move to target, target gains whatever
// descriptive fields it lacked, an audit record is written and source is
// deleted. Links target already holds are dropped rather than duplicated.
// A dry run performs every step and then rolls back.
func (m *Merger) Merge(ctx context.Context, in MergeInput) (MergeResult, error) {
	const op = "people.merge"
	if in.SourceID == uuid.Nil || in.TargetID == uuid.Nil {
		return MergeResult{}, apperr.Errorf(apperr.KindInvalidArgument, op, "source and target are required")
	}
	if in.SourceID == in.TargetID {
		return MergeResult{}, apperr.Errorf(apperr.KindInvalidArgument, op, "cannot merge a person into itself")
	}

	var res MergeResult
	err := m.store.Transaction(ctx, func(tx *store.Store) error {
		source, err := tx.People().Get(ctx, in.AccountID, in.SourceID)
		if err != nil {
			return err
		}
		target, err := tx.People().Get(ctx, in.AccountID, in.TargetID)
		if err != nil {
			return err
		}

		evidence, err := tx.Evidence().RepointPerson(ctx, source.ID, target.ID)
		if err != nil {
			return fmt.Errorf("repoint evidence: %w", err)
		}
		interviews, err := tx.People().MoveInterviewLinks(ctx, source.ID, target.ID)
		if err != nil {
			return fmt.Errorf("move interview links: %w", err)
		}
		facets, err := tx.People().MoveFacetLinks(ctx, source.ID, target.ID)
		if err != nil {
			return fmt.Errorf("move facet links: %w", err)
		}

		snapshot, err := json.Marshal(source)
		if err != nil {
			return fmt.Errorf("snapshot source: %w", err)
		}
		projectID := in.ProjectID
		if projectID == nil {
			projectID = target.ProjectID
		}
		rec := &types.PersonMergeRecord{
			AccountID:      in.AccountID,
			ProjectID:      projectID,
			SourcePersonID: source.ID,
			TargetPersonID: target.ID,
			EvidenceCount:  int(evidence),
			InterviewCount: int(interviews),
			FacetCount:     int(facets),
			Reason:         in.Reason,
			Actor:          in.Actor,
			SourceSnapshot: datatypes.JSON(snapshot),
			MergedAt:       m.now().UTC(),
		}
		if err := tx.MergeRecords().Create(ctx, rec); err != nil {
			return fmt.Errorf("create merge record: %w", err)
		}

		// Source goes first so identity fields copied onto target cannot
		// collide with it.
		if n, err := tx.People().Delete(ctx, source.ID); err != nil {
			return fmt.Errorf("delete source: %w", err)
		} else if n != 1 {
			return fmt.Errorf("delete source: %d rows affected", n)
		}
		if updates := fillMissing(target, source); len(updates) > 0 {
			if err := keepIdentityFree(ctx, tx, target, updates); err != nil {
				return err
			}
			if err := tx.People().UpdateFields(ctx, target.ID, updates); err != nil {
				return fmt.Errorf("update target: %w", err)
			}
		}

		res = MergeResult{
			Transferred: Transferred{
				Evidence:   int(evidence),
				Interviews: int(interviews),
				Facets:     int(facets),
			},
			MergeRecordID: rec.ID,
			DryRun:        in.DryRun,
		}
		if in.DryRun {
			return errDryRun
		}
		return nil
	})

	if errors.Is(err, errDryRun) {
		err = nil
	}
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound, apperr.KindInvalidArgument:
			return MergeResult{}, err
		}
		return MergeResult{}, apperr.E(apperr.KindTransaction, op, err)
	}

	m.log.WithField("source_id", in.SourceID).
		WithField("target_id", in.TargetID).
		WithField("evidence", res.Transferred.Evidence).
		WithField("interviews", res.Transferred.Interviews).
		WithField("facets", res.Transferred.Facets).
		WithField("dry_run", in.DryRun).
		Info("people merged")
	return res, nil
}

// keepIdentityFree drops the identity key updates when another person
// already holds the tuple target would end up with. Display fields still move.
func keepIdentityFree(ctx context.Context, tx *store.Store, target *types.Person, updates map[string]any) error {
	companyKey, okCompany := updates["company_key"].(string)
	emailKey, okEmail := updates["email_key"].(string)
	if !okCompany && !okEmail {
		return nil
	}
	if !okCompany {
		companyKey = target.CompanyKey
	}
	if !okEmail {
		emailKey = target.EmailKey
	}
	other, err := tx.People().FindByIdentity(ctx, target.AccountID, target.NameHash, companyKey, emailKey)
	if err != nil {
		return fmt.Errorf("check target identity: %w", err)
	}
	if other != nil && other.ID != target.ID {
		delete(updates, "company_key")
		delete(updates, "email_key")
	}
	return nil
}

// fillMissing returns the target columns source can fill in.
func fillMissing(target, source *types.Person) map[string]any {
	updates := map[string]any{}
	if target.Company == nil && source.Company != nil {
		updates["company"] = *source.Company
		updates["company_key"] = source.CompanyKey
	}
	if target.PrimaryEmail == nil && source.PrimaryEmail != nil {
		updates["primary_email"] = *source.PrimaryEmail
		updates["email_key"] = source.EmailKey
	}
	if target.Firstname == "" && source.Firstname != "" {
		updates["firstname"] = source.Firstname
	}
	if target.Lastname == "" && source.Lastname != "" {
		updates["lastname"] = source.Lastname
	}
	if target.Role == "" && source.Role != "" {
		updates["role"] = source.Role
	}
	if target.Segment == "" && source.Segment != "" {
		updates["segment"] = source.Segment
	}
	if (target.PersonType == "" || target.PersonType == types.PersonUnknown) && source.PersonType != "" && source.PersonType != types.PersonUnknown {
		updates["person_type"] = source.PersonType
	}
	if target.Platform == nil && source.Platform != nil && source.PlatformUserID != nil {
		updates["platform"] = *source.Platform
		updates["platform_user_id"] = *source.PlatformUserID
	}
	return updates
}
