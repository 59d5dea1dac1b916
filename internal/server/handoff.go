package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/Botopia-SAS/ezmig-efiling/internal/errors"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/reconcile"
)

// handoffRequest is the body of POST /v1/filings/handoff.
type handoffRequest struct {
	CaseFormID int    `json:"caseFormId"`
	UserID     string `json:"userId"`
	TeamID     string `json:"teamId"`
}

// handoffResponse carries everything the browser-helper agent needs:
// the reconciled payload plus the scoped session token.
type handoffResponse struct {
	CaseFormID   int               `json:"caseFormId"`
	FormCode     string            `json:"formCode"`
	FormSchema   filing.FormSchema `json:"formSchema"`
	FormData     map[string]any    `json:"formData"`
	SessionToken string            `json:"sessionToken"`

	// BridgeWaitMS is the reply window the page-side bridge sender
	// should use when talking to the helper agent.
	BridgeWaitMS int64 `json:"bridgeWaitMs"`
}

// handleHandoff prepares the payload handed across the page/helper-agent
// boundary: baseline snapshot, autosave overlay, and a minted
// short-lived credential.
func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	if s.deps.Minter == nil {
		apperrors.Write(w, http.StatusServiceUnavailable, apperrors.CodeInternal, "handoff signing is not configured")
		return
	}

	var req handoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Write(w, http.StatusBadRequest, apperrors.CodeInvalidRequest, "invalid request body")
		return
	}
	if req.CaseFormID <= 0 || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.TeamID) == "" {
		apperrors.Write(w, http.StatusBadRequest, apperrors.CodeInvalidRequest, "caseFormId, userId and teamId are required")
		return
	}

	cf, err := s.deps.CaseForms.GetCaseForm(r.Context(), req.CaseFormID)
	if err != nil {
		var notFound *filing.ErrCaseFormNotFound
		if errors.As(err, &notFound) {
			apperrors.Write(w, http.StatusNotFound, apperrors.CodeNotFound, err.Error())
			return
		}
		apperrors.Write(w, http.StatusInternalServerError, apperrors.CodeInternal, "case form lookup failed")
		return
	}

	formData, err := reconcile.ForCaseForm(r.Context(), s.deps.Autosaves, cf.CaseFormID, cf.FormData)
	if err != nil {
		apperrors.Write(w, http.StatusInternalServerError, apperrors.CodeInternal, "autosave reconciliation failed")
		return
	}

	token, err := s.deps.Minter.Mint(req.UserID, req.TeamID)
	if err != nil {
		apperrors.Write(w, http.StatusInternalServerError, apperrors.CodeInternal, "credential minting failed")
		return
	}
	s.deps.Metrics.TokensMinted.Inc()
	s.deps.Logger.Info("handoff prepared",
		zap.Int("case_form_id", cf.CaseFormID),
		zap.String("form_code", cf.FormCode),
		zap.String("team_id", req.TeamID))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(handoffResponse{
		CaseFormID:   cf.CaseFormID,
		FormCode:     cf.FormCode,
		FormSchema:   cf.Schema,
		FormData:     formData,
		SessionToken: token,
		BridgeWaitMS: s.deps.Config.BridgeWait.Milliseconds(),
	})
}
