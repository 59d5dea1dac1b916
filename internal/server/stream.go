package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/Botopia-SAS/ezmig-efiling/internal/errors"
	"github.com/Botopia-SAS/ezmig-efiling/internal/runreg"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/bot"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/progress"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/reconcile"
)

// runRequest is the body of POST /v1/filings/run.
type runRequest struct {
	CaseFormID  int            `json:"caseFormId"`
	FormCode    string         `json:"formCode"`
	FormData    map[string]any `json:"formData"`
	FormSchema  map[string]any `json:"formSchema"`
	Mode        string         `json:"mode"`
	Credentials *struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
}

// handleRun starts one bot run and streams its progress events until the
// terminal event.
//
// Pre-flight failures (bad body, unknown identifiers, no free run slot)
// are ordinary JSON error responses. Once the event stream is committed,
// every failure travels as a terminal error event instead; the response
// cannot change shape mid-flight.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Write(w, http.StatusBadRequest, apperrors.CodeInvalidRequest, "invalid request body")
		return
	}

	schema, err := filing.DecodeSchema(req.FormSchema)
	if err != nil {
		apperrors.Write(w, http.StatusBadRequest, apperrors.CodeInvalidRequest, fmt.Sprintf("invalid form schema: %v", err))
		return
	}

	job := &filing.Job{
		CaseFormID: req.CaseFormID,
		FormCode:   req.FormCode,
		Schema:     schema,
		FormData:   req.FormData,
		Mode:       req.Mode,
	}
	if req.Credentials != nil {
		job.Credentials = &filing.Credentials{
			Username: req.Credentials.Username,
			Password: req.Credentials.Password,
		}
	}
	if err := job.Validate(); err != nil {
		apperrors.Write(w, http.StatusBadRequest, apperrors.CodeInvalidRequest, err.Error())
		return
	}

	payload, err := reconcile.ForCaseForm(r.Context(), s.deps.Autosaves, job.CaseFormID, job.FormData)
	if err != nil {
		apperrors.Write(w, http.StatusInternalServerError, apperrors.CodeInternal, "autosave reconciliation failed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.Write(w, http.StatusInternalServerError, apperrors.CodeInternal, "streaming unsupported")
		return
	}

	if !s.runSlots.TryAcquire(1) {
		apperrors.Write(w, http.StatusServiceUnavailable, apperrors.CodeRunsExhausted, "all run slots are busy, retry later")
		return
	}

	runID := s.deps.Registry.Start(job.CaseFormID, job.FormCode, job.EffectiveMode())
	s.deps.Metrics.RunsStarted.Inc()
	s.deps.Metrics.RunsActive.Inc()
	s.deps.Logger.Info("bot run started",
		zap.String("run_id", runID),
		zap.Int("case_form_id", job.CaseFormID),
		zap.String("form_code", job.FormCode),
		zap.String("mode", job.EffectiveMode()))

	cfg := bot.DefaultConfig()
	cfg.RunBudget = s.deps.Config.RunBudget
	cfg.DriverRate = s.deps.Config.DriverRate
	runner := bot.New(s.deps.NewDriver(), job, payload, cfg)
	events := runner.Events()

	// Fire-and-forget: the run owns its own lifetime and outlives this
	// request if the watcher disconnects.
	go func() {
		runner.Run(context.Background())
		s.runSlots.Release(1)
		s.deps.Metrics.RunsActive.Dec()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case e, open := <-events:
			if !open {
				return
			}
			s.observeEvent(runID, e)
			if err := writeSSE(w, e); err != nil {
				// Watcher is gone mid-write; keep consuming so the
				// run's bookkeeping still completes.
				go s.drain(runID, events)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			go s.drain(runID, events)
			return
		}
	}
}

// drain consumes the rest of a run's events after the watcher
// disconnected, so terminal registry and metric updates still happen.
func (s *Server) drain(runID string, events <-chan progress.Event) {
	for e := range events {
		s.observeEvent(runID, e)
	}
}

// observeEvent updates metrics and, on the terminal event, the registry.
func (s *Server) observeEvent(runID string, e progress.Event) {
	s.deps.Metrics.EventsEmitted.Inc()
	if !e.Terminal() {
		return
	}

	state := runreg.StateFailed
	outcome := "failed"
	switch {
	case e.Type == progress.TypeDone:
		state, outcome = runreg.StateSuccess, "success"
	case e.Code == progress.CodeTimeout:
		state, outcome = runreg.StateTimeout, "timeout"
	}
	s.deps.Registry.Finish(runID, state, e.Code)
	s.deps.Metrics.RunOutcomes.WithLabelValues(outcome).Inc()
	s.deps.Logger.Info("bot run finished",
		zap.String("run_id", runID),
		zap.String("outcome", outcome),
		zap.String("code", e.Code))
}

// writeSSE renders one event as a server-sent-events data frame.
func writeSSE(w http.ResponseWriter, e progress.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", body)
	return err
}

// handleListRuns returns recent and active runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"runs": s.deps.Registry.List(),
	})
}
