package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/victor/decision-advisor/internal/advisor"
	"github.com/victor/decision-advisor/internal/billing"
)

// handleAsk runs one orchestrated advisory request.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req advisor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// A token-derived identity fills in a missing callerId; an explicit
	// callerId in the body always wins.
	if req.CallerID == "" {
		req.CallerID = callerFromContext(r.Context())
	}

	resp := s.advisor.Ask(r.Context(), req)
	s.jsonResponse(w, resp.Status, resp)
}

// UsageResponse reports a caller's quota state.
type UsageResponse struct {
	CallerID  string `json:"callerId"`
	Tier      string `json:"tier"`
	Tracked   bool   `json:"tracked"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// handleUsage returns the current tier and daily usage for a caller.
// Guests always read as untracked with zero usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	callerID := chi.URLParam(r, "callerID")
	if callerID == "" {
		s.errorResponse(w, http.StatusBadRequest, "caller id is required")
		return
	}

	d := s.ledger.Check(r.Context(), callerID)
	s.jsonResponse(w, http.StatusOK, UsageResponse{
		CallerID:  callerID,
		Tier:      d.Tier,
		Tracked:   d.Tracked,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining,
	})
}

// handleStripeWebhook verifies and applies a payment event. Non-2xx
// statuses make Stripe retry, so storage failures return 500.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	err = s.webhook.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var sigErr *billing.ErrBadSignature
		if errors.As(err, &sigErr) {
			s.errorResponse(w, http.StatusBadRequest, sigErr.Error())
			return
		}
		s.logger.Error().Err(err).Msg("webhook processing failed")
		s.errorResponse(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]bool{"received": true})
}
