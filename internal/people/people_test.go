package people_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/people"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/store/storetest"
	"interview-insights-go/internal/types"
)

func TestParseFullName(t *testing.T) {
	tests := []struct{ in, first, last string }{
		{"Sarah Chen", "Sarah", "Chen"},
		{"Mary Jane Watson", "Mary", "Jane Watson"},
		{"  Cher ", "Cher", ""},
		{"Ana   de  la Cruz", "Ana", "de la Cruz"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := people.ParseFullName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestNameHashNormalizes(t *testing.T) {
	assert.Equal(t, people.NameHash("Sarah Chen"), people.NameHash("  sarah   CHEN "))
	assert.NotEqual(t, people.NameHash("Sarah Chen"), people.NameHash("Sara Chen"))
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	r := people.NewResolver(s.People(), logger.Discard())
	account := uuid.New()

	first, err := r.Resolve(ctx, account, nil, people.Mention{Name: "Sarah Chen", Company: "Acme "})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, people.MatchedCreated, first.MatchedBy)

	second, err := r.Resolve(ctx, account, nil, people.Mention{Name: "sarah  chen", Company: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Created)
	assert.Equal(t, people.MatchedNameCompany, second.MatchedBy)

	all, err := s.People().ListByAccount(ctx, account, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Sarah", all[0].Firstname)
	assert.Equal(t, "Chen", all[0].Lastname)
	require.NotNil(t, all[0].Company)
	assert.Equal(t, "Acme", *all[0].Company)
}

func TestResolveConcurrentCallsConverge(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	r := people.NewResolver(s.People(), logger.Discard())
	account := uuid.New()

	ids := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, account, nil, people.Mention{Name: "Jordan Lee", Email: "jordan@example.com"})
			assert.NoError(t, err)
			ids[i] = res.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := s.People().ListByAccount(ctx, account, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveMatchesEmailAndPlatform(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	r := people.NewResolver(s.People(), logger.Discard())
	account := uuid.New()

	created, err := r.Resolve(ctx, account, nil, people.Mention{
		Name: "Priya Patel", Email: "Priya@Example.com", Platform: "zoom", PlatformUserID: "u-42",
	})
	require.NoError(t, err)

	byEmail, err := r.Resolve(ctx, account, nil, people.Mention{Name: "Priya Patel", Email: "priya@example.com", Role: "PM"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, people.MatchedEmail, byEmail.MatchedBy)

	byPlatform, err := r.Resolve(ctx, account, nil, people.Mention{Name: "P. Patel", Platform: "zoom", PlatformUserID: "u-42"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, byPlatform.ID)
	assert.Equal(t, people.MatchedPlatform, byPlatform.MatchedBy)

	p, err := s.People().Get(ctx, account, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "PM", p.Role)
}

func TestResolveRejectsPlaceholders(t *testing.T) {
	r := people.NewResolver(storetest.New(t).People(), logger.Discard())
	for _, name := range []string{"Participant 1", "Speaker B", "Interviewer", "  "} {
		_, err := r.Resolve(context.Background(), uuid.New(), nil, people.Mention{Name: name})
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}
}

type fixture struct {
	s       *store.Store
	account uuid.UUID
	project uuid.UUID
	source  uuid.UUID
	target  uuid.UUID
}

func newInterview(t *testing.T, f *fixture, speakers ...string) *types.Interview {
	t.Helper()
	ctx := context.Background()
	iv := &types.Interview{AccountID: f.account, ProjectID: f.project, Status: types.StatusReady}
	require.NoError(t, f.s.Interviews().Create(ctx, iv))
	var bundles []store.EvidenceBundle
	for i, sp := range speakers {
		bundles = append(bundles, store.EvidenceBundle{
			Evidence: &types.Evidence{Verbatim: "statement " + sp + string(rune('a'+i)), SpeakerLabel: sp},
			Facets:   []*types.EvidenceFacet{{KindSlug: "pain", Label: "pain " + sp + string(rune('a'+i))}},
		})
	}
	_, err := f.s.Evidence().ReplaceForInterview(ctx, iv, bundles)
	require.NoError(t, err)
	return iv
}

func link(t *testing.T, f *fixture, iv *types.Interview, label string, personID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.s.Evidence().LinkSpeaker(ctx, iv.ID, label, personID)
	require.NoError(t, err)
	_, err = f.s.People().LinkInterview(ctx, &types.InterviewPerson{InterviewID: iv.ID, PersonID: personID, ProjectID: iv.ProjectID, TranscriptKey: label})
	require.NoError(t, err)
}

func setupMerge(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := storetest.New(t)
	f := &fixture{s: s, account: uuid.New(), project: uuid.New()}
	r := people.NewResolver(s.People(), logger.Discard())

	src, err := r.Resolve(ctx, f.account, &f.project, people.Mention{Name: "Sam Rivera", Email: "sam@acme.io", Company: "Acme"})
	require.NoError(t, err)
	tgt, err := r.Resolve(ctx, f.account, &f.project, people.Mention{Name: "Samuel Rivera"})
	require.NoError(t, err)
	f.source, f.target = src.ID, tgt.ID

	// Interview 1: only source. Interview 2: both speak, so the target
	// already holds the participation link.
	iv1 := newInterview(t, f, "SPEAKER A", "SPEAKER A", "SPEAKER B")
	link(t, f, iv1, "SPEAKER A", f.source)
	iv2 := newInterview(t, f, "SPEAKER A", "SPEAKER B")
	link(t, f, iv2, "SPEAKER A", f.source)
	link(t, f, iv2, "SPEAKER B", f.target)

	_, err = people.NewFacetSyncer(s, logger.Discard()).Sync(ctx, f.project, uuid.Nil, uuid.Nil)
	require.NoError(t, err)
	return f
}

func TestMergeTransfersEverything(t *testing.T) {
	ctx := context.Background()
	f := setupMerge(t)
	m := people.NewMerger(f.s, logger.Discard())

	res, err := m.Merge(ctx, people.MergeInput{AccountID: f.account, SourceID: f.source, TargetID: f.target, Reason: "same person", Actor: "test"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Transferred.Evidence)
	// The target already took part in the second interview.
	assert.Equal(t, 1, res.Transferred.Interviews)
	assert.Equal(t, 3, res.Transferred.Facets)

	n, err := f.s.Evidence().CountByPerson(ctx, f.source)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.s.Evidence().CountByPerson(ctx, f.target)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	n, err = f.s.People().CountInterviewLinks(ctx, f.target)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = f.s.People().CountFacetLinks(ctx, f.source)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.s.People().Get(ctx, f.account, f.source)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	target, err := f.s.People().Get(ctx, f.account, f.target)
	require.NoError(t, err)
	require.NotNil(t, target.PrimaryEmail)
	assert.Equal(t, "sam@acme.io", *target.PrimaryEmail)
	assert.Equal(t, "acme", target.CompanyKey)

	recs, err := f.s.MergeRecords().ListByTarget(ctx, f.target)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.MergeRecordID, recs[0].ID)
	assert.Equal(t, 3, recs[0].EvidenceCount)
	assert.Contains(t, string(recs[0].SourceSnapshot), "Sam Rivera")
}

func TestMergeSkipsIdentityKeysHeldByAnotherPerson(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	account, project := uuid.New(), uuid.New()
	r := people.NewResolver(s.People(), logger.Discard())

	target, err := r.Resolve(ctx, account, &project, people.Mention{Name: "Jane Doe"})
	require.NoError(t, err)
	other, err := r.Resolve(ctx, account, &project, people.Mention{Name: "Jane Doe", Company: "Acme"})
	require.NoError(t, err)
	require.NotEqual(t, target.ID, other.ID)
	source, err := r.Resolve(ctx, account, &project, people.Mention{Name: "Jane D", Company: "Acme"})
	require.NoError(t, err)

	_, err = people.NewMerger(s, logger.Discard()).Merge(ctx, people.MergeInput{AccountID: account, SourceID: source.ID, TargetID: target.ID})
	require.NoError(t, err)

	got, err := s.People().Get(ctx, account, target.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Company)
	assert.Equal(t, "Acme", *got.Company)
	assert.Empty(t, got.CompanyKey)

	_, err = s.People().Get(ctx, account, source.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.People().Get(ctx, account, other.ID)
	require.NoError(t, err)
}

func TestMergeDryRunRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setupMerge(t)
	m := people.NewMerger(f.s, logger.Discard())

	res, err := m.Merge(ctx, people.MergeInput{AccountID: f.account, SourceID: f.source, TargetID: f.target, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 3, res.Transferred.Evidence)

	_, err = f.s.People().Get(ctx, f.account, f.source)
	require.NoError(t, err)
	recs, err := f.s.MergeRecords().ListByTarget(ctx, f.target)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMergeRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := setupMerge(t)
	m := people.NewMerger(f.s, logger.Discard())

	_, err := m.Merge(ctx, people.MergeInput{AccountID: f.account, SourceID: f.source, TargetID: f.source})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = m.Merge(ctx, people.MergeInput{AccountID: f.account, SourceID: uuid.New(), TargetID: f.target})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = m.Merge(ctx, people.MergeInput{AccountID: uuid.New(), SourceID: f.source, TargetID: f.target})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGroupDuplicates(t *testing.T) {
	email := "dana@example.com"
	acme := "Acme"
	mk := func(name, emailKey, companyKey string) types.Person {
		p := types.Person{ID: uuid.New(), Name: name, EmailKey: emailKey, CompanyKey: companyKey}
		p.Firstname, p.Lastname = people.ParseFullName(name)
		if emailKey != "" {
			p.PrimaryEmail = &email
		}
		if companyKey != "" {
			p.Company = &acme
		}
		return p
	}
	list := []types.Person{
		mk("Dana Scully", "dana@example.com", ""),
		mk("D. Scully", "dana@example.com", ""),
		mk("Tim Wolf", "", "acme"),
		mk("Tim", "", "acme"),
		mk("Participant 1", "", ""),
		mk("Participant 2", "", ""),
		mk("Ravi Shah", "", ""),
	}
	groups := people.GroupDuplicates(list)
	require.Len(t, groups, 3)
	assert.Equal(t, people.ReasonEmail, groups[0].Reason)
	assert.Equal(t, people.ReasonFirstnameCompany, groups[1].Reason)
	assert.Equal(t, "firstname_company:tim|acme", groups[1].Key)
	assert.Equal(t, people.ReasonPlaceholder, groups[2].Reason)
	assert.Equal(t, "placeholder_name:participant", groups[2].Key)
}

func TestAutoMergePicksMostComplete(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	account := uuid.New()
	r := people.NewResolver(s.People(), logger.Discard())

	rich, err := r.Resolve(ctx, account, nil, people.Mention{Name: "Lee Park", Email: "lee@corp.com", Company: "Corp", Role: "CTO"})
	require.NoError(t, err)
	_, err = r.Resolve(ctx, account, nil, people.Mention{Name: "Lee Park", Email: "lpark@corp.com", Company: "Corp"})
	require.NoError(t, err)

	d := people.NewDeduper(s, people.NewMerger(s, logger.Discard()), logger.Discard())

	rep, err := d.AutoMerge(ctx, account, nil, "test", true)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.GroupsProcessed)
	assert.Equal(t, 1, rep.PeopleMerged)
	all, err := s.People().ListByAccount(ctx, account, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rep, err = d.AutoMerge(ctx, account, nil, "test", false)
	require.NoError(t, err)
	assert.Empty(t, rep.Errors)
	all, err = s.People().ListByAccount(ctx, account, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rich.ID, all[0].ID)
}
