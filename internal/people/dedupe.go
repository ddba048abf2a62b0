package people

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/speaker"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
)

const (
	ReasonEmail            = "email"
	ReasonNameCompany      = "name_company"
	ReasonFirstnameCompany = "firstname_company"
	ReasonPlaceholder      = "placeholder_name"
)

// DuplicateGroup is a set of people that likely describe the same person.
// People are ordered oldest first.
type DuplicateGroup struct {
	Key    string         `json:"key"`
	Reason string         `json:"reason"`
	People []types.Person `json:"people"`
}

type AutoMergeReport struct {
	GroupsProcessed int      `json:"groups_processed"`
	PeopleMerged    int      `json:"people_merged"`
	Errors          []string `json:"errors,omitempty"`
	DryRun          bool     `json:"dry_run"`
}

type Deduper struct {
	store  *store.Store
	merger *Merger
	log    *logger.Logger
}

func NewDeduper(s *store.Store, merger *Merger, log *logger.Logger) *Deduper {
	return &Deduper{store: s, merger: merger, log: log.Component("people-dedupe")}
}

func (d *Deduper) FindDuplicates(ctx context.Context, accountID uuid.UUID, projectID *uuid.UUID) ([]DuplicateGroup, error) {
	people, err := d.store.People().ListByAccount(ctx, accountID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	groups := GroupDuplicates(people)
	d.log.WithField("account_id", accountID).
		WithField("people", len(people)).
		WithField("groups", len(groups)).
		Info("duplicate scan complete")
	return groups, nil
}

// GroupDuplicates runs the matching passes in order of strength. A person
// claimed by an earlier pass is not considered by later ones.
func GroupDuplicates(people []types.Person) []DuplicateGroup {
	var out []DuplicateGroup
	matched := map[uuid.UUID]bool{}

	pass := func(reason string, keyFn func(p types.Person) string) {
		buckets := map[string][]types.Person{}
		var order []string
		for _, p := range people {
			if matched[p.ID] {
				continue
			}
			key := keyFn(p)
			if key == "" {
				continue
			}
			if _, ok := buckets[key]; !ok {
				order = append(order, key)
			}
			buckets[key] = append(buckets[key], p)
		}
		for _, key := range order {
			group := buckets[key]
			if len(group) < 2 {
				continue
			}
			for _, p := range group {
				matched[p.ID] = true
			}
			out = append(out, DuplicateGroup{Key: reason + ":" + key, Reason: reason, People: group})
		}
	}

	pass(ReasonEmail, func(p types.Person) string { return p.EmailKey })
	pass(ReasonNameCompany, func(p types.Person) string {
		if p.CompanyKey == "" {
			return ""
		}
		return strings.ToLower(NormalizeName(p.Name)) + "|" + p.CompanyKey
	})
	pass(ReasonFirstnameCompany, func(p types.Person) string {
		first := strings.ToLower(p.Firstname)
		if first == "" {
			first, _ = ParseFullName(strings.ToLower(p.Name))
		}
		if len(first) < 2 || p.CompanyKey == "" {
			return ""
		}
		return first + "|" + p.CompanyKey
	})
	pass(ReasonPlaceholder, func(p types.Person) string { return placeholderGroupKey(p.Name) })
	return out
}

var rePlaceholderBase = regexp.MustCompile(`^(participant|speaker|interviewee|respondent|user|person|unknown)\s*\d*$`)

// placeholderGroupKey buckets "Participant 1" and "Participant 2" together.
func placeholderGroupKey(name string) string {
	n := strings.ToLower(NormalizeName(name))
	if !speaker.IsPlaceholderName(n) {
		return ""
	}
	if m := rePlaceholderBase.FindStringSubmatch(n); m != nil {
		return m[1]
	}
	return ""
}

// Completeness scores how much a record knows; the most complete record of a
// group survives an auto merge.
func Completeness(p types.Person) int {
	score := 0
	if p.Name != "" {
		score += 10
	}
	if p.Firstname != "" && p.Lastname != "" {
		score += 5
	}
	if p.PrimaryEmail != nil {
		score += 15
	}
	if p.Platform != nil {
		score += 10
	}
	if p.Company != nil {
		score += 5
	}
	if p.Role != "" {
		score += 5
	}
	if p.Segment != "" {
		score += 3
	}
	if p.PersonType != "" && p.PersonType != types.PersonUnknown {
		score += 2
	}
	return score
}

// AutoMerge merges every duplicate group into its most complete member.
// Failures are collected and do not stop the remaining groups.
func (d *Deduper) AutoMerge(ctx context.Context, accountID uuid.UUID, projectID *uuid.UUID, actor string, dryRun bool) (AutoMergeReport, error) {
	groups, err := d.FindDuplicates(ctx, accountID, projectID)
	if err != nil {
		return AutoMergeReport{}, err
	}

	rep := AutoMergeReport{DryRun: dryRun}
	for _, g := range groups {
		members := append([]types.Person(nil), g.People...)
		sort.SliceStable(members, func(i, j int) bool { return Completeness(members[i]) > Completeness(members[j]) })
		primary := members[0]

		log := d.log.WithField("group", g.Key).WithField("primary_id", primary.ID).WithField("dry_run", dryRun)
		log.WithField("duplicates", len(members)-1).Info("merging duplicate group")

		for _, dup := range members[1:] {
			_, err := d.merger.Merge(ctx, MergeInput{
				AccountID: accountID,
				ProjectID: projectID,
				SourceID:  dup.ID,
				TargetID:  primary.ID,
				Reason:    "auto:" + g.Reason,
				Actor:     actor,
				DryRun:    dryRun,
			})
			if err != nil {
				rep.Errors = append(rep.Errors, fmt.Sprintf("%s -> %s: %v", dup.ID, primary.ID, err))
				continue
			}
			rep.PeopleMerged++
		}
		rep.GroupsProcessed++
	}
	return rep, nil
}
