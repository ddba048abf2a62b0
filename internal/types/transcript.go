package types

// Transcript is the canonical shape every transcription payload is reduced to.
// Slices are never nil after sanitization.
type Transcript struct {
	FullTranscript     string      `json:"full_transcript"`
	SpeakerTranscripts []Utterance `json:"speaker_transcripts"`
	AudioDuration      *float64    `json:"audio_duration"`
	Language           string      `json:"language,omitempty"`
	Words              []Word      `json:"words"`
	Chapters           []Chapter   `json:"chapters"`
}

// Utterance timings are kept in the unit the provider sent (seconds or ms).
type Utterance struct {
	Speaker    string   `json:"speaker"`
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end,omitempty"`
}

type Chapter struct {
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
	Summary string  `json:"summary,omitempty"`
	Title   string  `json:"title,omitempty"`
}

// EmptyTranscript returns the canonical transcript with every slice allocated.
func EmptyTranscript() Transcript {
	return Transcript{
		SpeakerTranscripts: []Utterance{},
		Words:              []Word{},
		Chapters:           []Chapter{},
	}
}

// Participant is a person mention produced by extraction. It is stored on the
// interview and later resolved into the people registry.
type Participant struct {
	Name           string `json:"name"`
	SpeakerLabel   string `json:"speaker_label,omitempty"`
	Email          string `json:"email,omitempty"`
	Company        string `json:"company,omitempty"`
	Role           string `json:"role,omitempty"`
	Segment        string `json:"segment,omitempty"`
	PersonType     string `json:"person_type,omitempty"`
	Platform       string `json:"platform,omitempty"`
	PlatformUserID string `json:"platform_user_id,omitempty"`
	Placeholder    bool   `json:"placeholder,omitempty"`
}
