package people

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/speaker"
	"interview-insights-go/internal/types"
)

const (
	MatchedPlatform    = "platform"
	MatchedEmail       = "email"
	MatchedNameCompany = "name_company"
	MatchedCreated     = "created"
)

// Mention is a person as named in one interview.
type Mention struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	Company        string `json:"company,omitempty"`
	Platform       string `json:"platform,omitempty"`
	PlatformUserID string `json:"platform_user_id,omitempty"`
	Role           string `json:"role,omitempty"`
	Segment        string `json:"segment,omitempty"`
	PersonType     string `json:"person_type,omitempty"`
}

// MentionFromParticipant adapts an extracted participant.
func MentionFromParticipant(p types.Participant) Mention {
	return Mention{
		Name:           p.Name,
		Email:          p.Email,
		Company:        p.Company,
		Platform:       p.Platform,
		PlatformUserID: p.PlatformUserID,
		Role:           p.Role,
		Segment:        p.Segment,
		PersonType:     p.PersonType,
	}
}

type Resolution struct {
	ID        uuid.UUID `json:"id"`
	MatchedBy string    `json:"matched_by"`
	Created   bool      `json:"created"`
}

// PersonStore is what resolution needs from the people repository.
type PersonStore interface {
	InsertIfAbsent(ctx context.Context, p *types.Person) (bool, error)
	FindByIdentity(ctx context.Context, accountID uuid.UUID, nameHash, companyKey, emailKey string) (*types.Person, error)
	FindByNameCompany(ctx context.Context, accountID uuid.UUID, nameHash, companyKey string) (*types.Person, error)
	FindByPlatform(ctx context.Context, accountID uuid.UUID, platform, platformUserID string) (*types.Person, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type Resolver struct {
	people PersonStore
	log    *logger.Logger
}

func NewResolver(people PersonStore, log *logger.Logger) *Resolver {
	return &Resolver{people: people, log: log.Component("person-resolver")}
}

// Resolve returns the canonical person for a mention, creating it when no
// match exists. Concurrent calls with the same identity converge on one row:
// the insert is conditional and a lost race falls through to lookup.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID, projectID *uuid.UUID, m Mention) (Resolution, error) {
	const op = "people.resolve"
	name := NormalizeName(m.Name)
	if name == "" || speaker.IsPlaceholderName(name) {
		return Resolution{}, apperr.Errorf(apperr.KindValidation, op, "refusing to resolve placeholder name %q", m.Name)
	}
	if accountID == uuid.Nil {
		return Resolution{}, apperr.Errorf(apperr.KindInvalidArgument, op, "account id is required")
	}

	nameHash := NameHash(name)
	companyKey := NormalizeKey(m.Company)
	emailKey := NormalizeKey(m.Email)
	platform := strings.TrimSpace(m.Platform)
	platformUserID := strings.TrimSpace(m.PlatformUserID)
	hasPlatform := platform != "" && platformUserID != ""

	if hasPlatform {
		p, err := r.people.FindByPlatform(ctx, accountID, platform, platformUserID)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by platform: %w", err)
		}
		if p != nil {
			return r.matched(ctx, p, m, MatchedPlatform)
		}
	}

	if emailKey == "" {
		p, err := r.people.FindByNameCompany(ctx, accountID, nameHash, companyKey)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by name and company: %w", err)
		}
		if p != nil {
			return r.matched(ctx, p, m, MatchedNameCompany)
		}
	}

	first, last := ParseFullName(name)
	p := &types.Person{
		AccountID:    accountID,
		ProjectID:    projectID,
		Name:         name,
		Firstname:    first,
		Lastname:     last,
		NameHash:     nameHash,
		Company:      strPtr(m.Company),
		CompanyKey:   companyKey,
		PrimaryEmail: strPtr(emailKey),
		EmailKey:     emailKey,
		PersonType:   personType(m.PersonType),
		Segment:      strings.TrimSpace(m.Segment),
		Role:         strings.TrimSpace(m.Role),
	}
	if hasPlatform {
		p.Platform = &platform
		p.PlatformUserID = &platformUserID
	}

	inserted, err := r.people.InsertIfAbsent(ctx, p)
	if err != nil {
		return Resolution{}, fmt.Errorf("insert person: %w", err)
	}
	if inserted {
		r.log.WithField("person_id", p.ID).Debug("person created")
		return Resolution{ID: p.ID, MatchedBy: MatchedCreated, Created: true}, nil
	}

	existing, err := r.people.FindByIdentity(ctx, accountID, nameHash, companyKey, emailKey)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by identity: %w", err)
	}
	if existing != nil {
		by := MatchedNameCompany
		if emailKey != "" {
			by = MatchedEmail
		}
		return r.matched(ctx, existing, m, by)
	}

	existing, err = r.people.FindByNameCompany(ctx, accountID, nameHash, companyKey)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by name and company: %w", err)
	}
	if existing != nil {
		return r.matched(ctx, existing, m, MatchedNameCompany)
	}

	if hasPlatform {
		existing, err = r.people.FindByPlatform(ctx, accountID, platform, platformUserID)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by platform: %w", err)
		}
		if existing != nil {
			return r.matched(ctx, existing, m, MatchedPlatform)
		}
	}

	return Resolution{}, apperr.Errorf(apperr.KindDataConflict, op, "insert skipped but no matching person for %q", name)
}

// matched fills descriptive fields the existing row lacks. Identity columns
// are never touched here.
func (r *Resolver) matched(ctx context.Context, p *types.Person, m Mention, by string) (Resolution, error) {
	updates := map[string]any{}
	if p.Role == "" && strings.TrimSpace(m.Role) != "" {
		updates["role"] = strings.TrimSpace(m.Role)
	}
	if p.Segment == "" && strings.TrimSpace(m.Segment) != "" {
		updates["segment"] = strings.TrimSpace(m.Segment)
	}
	if pt := personType(m.PersonType); (p.PersonType == "" || p.PersonType == types.PersonUnknown) && pt != types.PersonUnknown {
		updates["person_type"] = pt
	}
	if len(updates) > 0 {
		if err := r.people.UpdateFields(ctx, p.ID, updates); err != nil {
			return Resolution{}, fmt.Errorf("enrich person: %w", err)
		}
	}
	return Resolution{ID: p.ID, MatchedBy: by}, nil
}

func personType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case types.PersonInternal:
		return types.PersonInternal
	case types.PersonRespondent:
		return types.PersonRespondent
	default:
		return types.PersonUnknown
	}
}
