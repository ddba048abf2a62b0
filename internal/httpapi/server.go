// Package httpapi exposes intake, regeneration, people and theme endpoints
// over net/http.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"interview-insights-go/internal/actionable"
	"interview-insights-go/internal/app"
	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/people"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/types"
)

const maxBodyBytes = 1 << 20

type Server struct {
	app      *app.App
	log      *logger.Logger
	validate *validator.Validate
}

func New(a *app.App) *Server {
	return &Server{app: a, log: a.Log.Component("http"), validate: validator.New()}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /interviews", s.intake)
	mux.HandleFunc("GET /interviews/{id}", s.getInterview)
	mux.HandleFunc("POST /interviews/{id}/regenerate", s.regenerate)
	mux.HandleFunc("POST /people/resolve", s.resolvePerson)
	mux.HandleFunc("POST /people/merge", s.mergePeople)
	mux.HandleFunc("GET /projects/{id}/themes", s.themes)
	mux.HandleFunc("GET /projects/{id}/pain-matrix", s.painMatrix)
	mux.HandleFunc("POST /projects/{id}/backfill-embeddings", s.backfill)
	mux.HandleFunc("GET /jobs/{id}", s.getJob)
	return mux
}

// NewHTTPServer applies the configured timeouts.
func (s *Server) NewHTTPServer() *http.Server {
	cfg := s.app.Config.Server
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r)
	sqlDB, err := s.app.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		reqLog.WithError(err).Warn("health check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "ok")
}

func (s *Server) intake(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "intake")
	var in pipeline.IntakeInput
	if !s.decode(w, r, reqLog, &in) {
		return
	}
	iv, h, err := s.app.Pipeline.Intake(r.Context(), in)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	reqLog.WithField("interview_id", iv.ID).WithField("job_id", h.ID).Info("interview accepted")
	writeJSON(w, reqLog, http.StatusAccepted, map[string]any{"interview": iv, "job": h})
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get_interview")
	id, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	iv, err := s.app.Store.Interviews().Get(r.Context(), id)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, iv)
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "regenerate")
	id, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	var in pipeline.RegenerateInput
	if !s.decodeOptional(w, r, reqLog, &in) {
		return
	}
	h, err := s.app.Pipeline.Regenerate(r.Context(), id, in)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusAccepted, map[string]any{"job": h})
}

type resolveRequest struct {
	AccountID uuid.UUID  `json:"account_id" validate:"required"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	people.Mention
}

func (s *Server) resolvePerson(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "resolve_person")
	var in resolveRequest
	if !s.decode(w, r, reqLog, &in) {
		return
	}
	res, err := s.app.Resolver.Resolve(r.Context(), in.AccountID, in.ProjectID, in.Mention)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, reqLog, status, res)
}

func (s *Server) mergePeople(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "merge_people")
	var in people.MergeInput
	if !s.decode(w, r, reqLog, &in) {
		return
	}
	if in.Actor == "" {
		in.Actor = r.Header.Get("X-Actor")
	}
	res, err := s.app.Merger.Merge(r.Context(), in)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, res)
}

func (s *Server) themes(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "themes")
	projectID, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	threshold, ok := queryThreshold(w, r, reqLog)
	if !ok {
		return
	}
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = "pain"
	}
	themes, err := s.app.Clusters.ClusterFacets(r.Context(), projectID, kind, threshold)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	if themes == nil {
		themes = []types.Theme{}
	}
	writeJSON(w, reqLog, http.StatusOK, map[string]any{"kind": kind, "themes": themes})
}

func (s *Server) painMatrix(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "pain_matrix")
	projectID, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	threshold, ok := queryThreshold(w, r, reqLog)
	if !ok {
		return
	}
	start := time.Now()
	m, err := s.app.PainMatrix.Build(r.Context(), projectID, threshold)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("cells", len(m.Cells)).
		Info("pain matrix built")
	writeJSON(w, reqLog, http.StatusOK, map[string]any{
		"matrix":  m,
		"actions": actionable.Generate(m, s.app.Config.Clustering.TopActions),
	})
}

type backfillRequest struct {
	KindSlugs []string `json:"kind_slugs,omitempty"`
}

func (s *Server) backfill(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "backfill")
	projectID, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	var in backfillRequest
	if !s.decodeOptional(w, r, reqLog, &in) {
		return
	}
	h, err := s.app.Queue.Submit(r.Context(), types.JobBackfillEmbeddings, types.BackfillPayload{
		ProjectID: projectID.String(),
		KindSlugs: in.KindSlugs,
	})
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusAccepted, map[string]any{"job": h})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get_job")
	id, ok := pathID(w, r, reqLog)
	if !ok {
		return
	}
	job, err := s.app.Queue.Get(r.Context(), id)
	if err != nil {
		s.fail(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, job)
}

// decode reads a required JSON body and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		reqLog.WithError(err).Warn("invalid request body")
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			reqLog.WithError(err).Warn("request validation failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return false
		}
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		reqLog.WithError(err).Warn("invalid request body")
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, reqLog *logrus.Entry, err error) {
	status := apperr.HTTPStatus(err)
	entry := reqLog.WithField("error", err.Error()).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	writeJSON(w, reqLog, status, map[string]string{"error": err.Error(), "kind": string(apperr.KindOf(err))})
}

func pathID(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		reqLog.WithField("id", r.PathValue("id")).Warn("invalid id")
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryThreshold(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry) (float64, bool) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		reqLog.WithField("threshold", raw).Warn("invalid threshold")
		http.Error(w, "threshold must be in (0, 1]", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, reqLog *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}
