package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Interview statuses. StatusError is absorbing for a run.
const (
	StatusUploading   = "uploading"
	StatusProcessing  = "processing"
	StatusTranscribed = "transcribed"
	StatusAnalyzing   = "analyzing"
	StatusReady       = "ready"
	StatusError       = "error"
)

// Person types.
const (
	PersonInternal   = "internal"
	PersonRespondent = "respondent"
	PersonUnknown    = "unknown"
)

type Interview struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"account_id"`
	ProjectID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Title               string         `gorm:"column:title" json:"title"`
	Status              string         `gorm:"column:status;not null;index" json:"status"`
	MediaURL            string         `gorm:"column:media_url" json:"media_url,omitempty"`
	Transcript          string         `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	TranscriptFormatted datatypes.JSON `gorm:"column:transcript_formatted" json:"transcript_formatted,omitempty"`
	Participants        datatypes.JSON `gorm:"column:participants" json:"participants,omitempty"`
	DurationSeconds     *float64       `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	StatusDetail        string         `gorm:"column:status_detail" json:"status_detail,omitempty"`
	SpeakerReviewNeeded bool           `gorm:"column:speaker_review_needed;not null;default:false" json:"speaker_review_needed"`
	ProcessingMetadata  datatypes.JSON `gorm:"column:processing_metadata" json:"processing_metadata,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
}

func (Interview) TableName() string { return "interviews" }

func (m *Interview) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Evidence is one atomic statement pulled from a transcript. Only PersonID
// changes after insert.
type Evidence struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InterviewID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"interview_id"`
	AccountID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	ProjectID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	Verbatim      string     `gorm:"column:verbatim;type:text;not null" json:"verbatim"`
	Gist          string     `gorm:"column:gist" json:"gist,omitempty"`
	SpeakerLabel  string     `gorm:"column:speaker_label;not null;index" json:"speaker_label"`
	AnchorStartMs *int64     `gorm:"column:anchor_start_ms" json:"anchor_start_ms,omitempty"`
	AnchorEndMs   *int64     `gorm:"column:anchor_end_ms" json:"anchor_end_ms,omitempty"`
	Confidence    string     `gorm:"column:confidence" json:"confidence,omitempty"`
	PersonID      *uuid.UUID `gorm:"type:uuid;column:person_id;index" json:"person_id,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Evidence) TableName() string { return "evidence" }

func (m *Evidence) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type EvidenceFacet struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EvidenceID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"evidence_id"`
	InterviewID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"interview_id"`
	ProjectID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_facet_project_kind,priority:1" json:"project_id"`
	AccountID            uuid.UUID  `gorm:"type:uuid;not null" json:"account_id"`
	KindSlug             string     `gorm:"column:kind_slug;not null;index:idx_facet_project_kind,priority:2" json:"kind_slug"`
	Label                string     `gorm:"column:label;not null" json:"label"`
	FreeText             *string    `gorm:"column:free_text;type:text" json:"free_text,omitempty"`
	Embedding            Vector     `gorm:"column:embedding" json:"embedding,omitempty"`
	EmbeddingModel       string     `gorm:"column:embedding_model" json:"embedding_model,omitempty"`
	EmbeddingGeneratedAt *time.Time `gorm:"column:embedding_generated_at" json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time  `gorm:"not null" json:"created_at"`
}

func (EvidenceFacet) TableName() string { return "evidence_facets" }

func (m *EvidenceFacet) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type InterviewPerson struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InterviewID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_interview_people,priority:1" json:"interview_id"`
	PersonID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_interview_people,priority:2;index" json:"person_id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	TranscriptKey string    `gorm:"column:transcript_key" json:"transcript_key,omitempty"`
	DisplayName   string    `gorm:"column:display_name" json:"display_name,omitempty"`
	Role          string    `gorm:"column:role" json:"role,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (InterviewPerson) TableName() string { return "interview_people" }

func (m *InterviewPerson) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type PersonFacet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PersonID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_person_facets,priority:1" json:"person_id"`
	FacetID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_person_facets,priority:2;index" json:"facet_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PersonFacet) TableName() string { return "person_facets" }

func (m *PersonFacet) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Person is the canonical identity registry row. CompanyKey and EmailKey
// mirror Company and PrimaryEmail, holding the empty string when absent, so
// the identity index treats missing values as equal.
type Person struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_people_identity,priority:1;uniqueIndex:ux_people_platform,priority:1" json:"account_id"`
	ProjectID      *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Name           string     `gorm:"column:name;not null" json:"name"`
	Firstname      string     `gorm:"column:firstname" json:"firstname,omitempty"`
	Lastname       string     `gorm:"column:lastname" json:"lastname,omitempty"`
	NameHash       string     `gorm:"column:name_hash;not null;uniqueIndex:ux_people_identity,priority:2" json:"name_hash"`
	Company        *string    `gorm:"column:company" json:"company,omitempty"`
	CompanyKey     string     `gorm:"column:company_key;not null;default:'';uniqueIndex:ux_people_identity,priority:3" json:"-"`
	PrimaryEmail   *string    `gorm:"column:primary_email" json:"primary_email,omitempty"`
	EmailKey       string     `gorm:"column:email_key;not null;default:'';uniqueIndex:ux_people_identity,priority:4" json:"-"`
	PersonType     string     `gorm:"column:person_type;not null;default:'unknown'" json:"person_type"`
	Segment        string     `gorm:"column:segment" json:"segment,omitempty"`
	Role           string     `gorm:"column:role" json:"role,omitempty"`
	Platform       *string    `gorm:"column:platform;uniqueIndex:ux_people_platform,priority:2" json:"platform,omitempty"`
	PlatformUserID *string    `gorm:"column:platform_user_id;uniqueIndex:ux_people_platform,priority:3" json:"platform_user_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (Person) TableName() string { return "people" }

func (m *Person) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// PersonMergeRecord is the insert-only audit trail of merges.
type PersonMergeRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"account_id"`
	ProjectID      *uuid.UUID     `gorm:"type:uuid" json:"project_id,omitempty"`
	SourcePersonID uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_person_id"`
	TargetPersonID uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_person_id"`
	EvidenceCount  int            `gorm:"column:evidence_count;not null" json:"evidence_count"`
	InterviewCount int            `gorm:"column:interview_count;not null" json:"interview_count"`
	FacetCount     int            `gorm:"column:facet_count;not null" json:"facet_count"`
	Reason         string         `gorm:"column:reason" json:"reason,omitempty"`
	Actor          string         `gorm:"column:actor" json:"actor,omitempty"`
	SourceSnapshot datatypes.JSON `gorm:"column:source_snapshot" json:"source_snapshot"`
	MergedAt       time.Time      `gorm:"column:merged_at;not null" json:"merged_at"`
}

func (PersonMergeRecord) TableName() string { return "person_merge_records" }

func (m *PersonMergeRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Theme is a computed cluster of similar facets. It is never persisted.
type Theme struct {
	ID                  uuid.UUID   `json:"id"`
	KindSlug            string      `json:"kind_slug"`
	RepresentativeLabel string      `json:"representative_label"`
	FacetIDs            []uuid.UUID `json:"facet_ids"`
	Labels              []string    `json:"labels"`
	EvidenceIDs         []uuid.UUID `json:"evidence_ids"`
	EvidenceCount       int         `json:"evidence_count"`
}

// AllModels lists every persisted model, in migration order.
func AllModels() []any {
	return []any{
		&Interview{},
		&Evidence{},
		&EvidenceFacet{},
		&InterviewPerson{},
		&PersonFacet{},
		&Person{},
		&PersonMergeRecord{},
		&JobRun{},
	}
}
