package pipeline

import (
	"context"

	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/types"
)

// OrchestrateHandler runs orchestrate-interview jobs. The workflow state lives
// in the job result so a retried job resumes after its last completed step.
type OrchestrateHandler struct {
	orch *Orchestrator
}

func NewOrchestrateHandler(orch *Orchestrator) *OrchestrateHandler {
	return &OrchestrateHandler{orch: orch}
}

func (h *OrchestrateHandler) Type() string { return types.JobOrchestrateInterview }

func (h *OrchestrateHandler) Run(jc *jobs.JobContext) (any, error) {
	var p types.OrchestratePayload
	if err := jc.Decode(&p); err != nil {
		return nil, err
	}
	res, err := h.orch.Run(jc.Ctx, p, jobState{jc: jc})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type jobState struct {
	jc *jobs.JobContext
}

func (s jobState) Load(ctx context.Context) (types.WorkflowState, bool, error) {
	var st types.WorkflowState
	ok, err := s.jc.LoadState(&st)
	return st, ok, err
}

func (s jobState) Save(ctx context.Context, step string, st types.WorkflowState) error {
	return s.jc.SaveState(step, st)
}

// MemoryState keeps workflow state in memory, for one-off runs outside the
// job queue.
type MemoryState struct {
	State types.WorkflowState
	saved bool
}

func (m *MemoryState) Load(ctx context.Context) (types.WorkflowState, bool, error) {
	return m.State, m.saved, nil
}

func (m *MemoryState) Save(ctx context.Context, step string, st types.WorkflowState) error {
	m.State = st
	m.State.CompletedSteps = append([]string(nil), st.CompletedSteps...)
	m.saved = true
	return nil
}
