package types

// Pipeline step names, in execution order.
const (
	StepUpload   = "upload"
	StepEvidence = "evidence"
	StepEmbed    = "embed"
	StepCluster  = "cluster"
	StepPeople   = "people"
	StepFinalize = "finalize"
)

var Steps = []string{StepUpload, StepEvidence, StepEmbed, StepCluster, StepPeople, StepFinalize}

type OrchestratePayload struct {
	InterviewID  string   `json:"interview_id" validate:"required,uuid"`
	AccountID    string   `json:"account_id" validate:"required,uuid"`
	ProjectID    string   `json:"project_id" validate:"required,uuid"`
	MediaURL     string   `json:"media_url,omitempty" validate:"omitempty,url"`
	Instructions string   `json:"instructions,omitempty" validate:"max=8000"`
	ResumeFrom   string   `json:"resume_from,omitempty" validate:"omitempty,oneof=upload evidence embed cluster people finalize"`
	SkipSteps    []string `json:"skip_steps,omitempty" validate:"omitempty,dive,oneof=upload evidence embed cluster people finalize"`
}

type BackfillPayload struct {
	ProjectID string   `json:"project_id" validate:"required,uuid"`
	KindSlugs []string `json:"kind_slugs,omitempty" validate:"omitempty,dive,required"`
}

type SyncFacetsPayload struct {
	ProjectID   string `json:"project_id" validate:"required,uuid"`
	InterviewID string `json:"interview_id,omitempty" validate:"omitempty,uuid"`
	PersonID    string `json:"person_id,omitempty" validate:"omitempty,uuid"`
}

// WorkflowState is the orchestrator's resume token, stored in JobRun.Result.
type WorkflowState struct {
	InterviewID    string   `json:"interview_id"`
	CompletedSteps []string `json:"completed_steps"`
	CurrentStep    string   `json:"current_step,omitempty"`
	// ResumeApplied is set once an explicit resume point has reset the
	// completed steps, so retries of the same job keep their progress.
	ResumeApplied  bool     `json:"resume_applied,omitempty"`
}

func (s WorkflowState) Completed(step string) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}
