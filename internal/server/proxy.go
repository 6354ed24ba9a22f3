package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/victor/decision-advisor/internal/advisor"
	"github.com/victor/decision-advisor/internal/llm"
)

// ProxyRequest is the low-level passthrough request: caller-shaped
// provider contents plus an optional model override.
type ProxyRequest struct {
	Model            string          `json:"model,omitempty"`
	Contents         json.RawMessage `json:"contents"`
	GenerationConfig json.RawMessage `json:"generationConfig,omitempty"`
}

// handleProxy forwards a caller-shaped payload to the provider and
// returns the normalized text in the standard envelope.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProxyRequest(w, r)
	if !ok {
		return
	}

	text, err := s.proxy.Generate(r.Context(), req.Model, llm.ProxyPayload{
		Contents:         req.Contents,
		GenerationConfig: req.GenerationConfig,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("model", req.Model).Msg("proxy call failed")
		s.jsonResponse(w, http.StatusOK, advisor.Response{
			Success:   false,
			Error:     "The advisor is busy right now. Please try again in a moment. (" + err.Error() + ")",
			Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	if text == "" {
		text = llm.EmptyResultMessage
	}
	s.jsonResponse(w, http.StatusOK, advisor.Response{
		Success:   true,
		Answer:    text,
		Output:    text,
		Result:    text,
		Model:     req.Model,
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleProxyStream forwards a payload to the streaming endpoint and
// re-emits text fragments over SSE as they arrive.
func (s *Server) handleProxyStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProxyRequest(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = s.proxy.Stream(r.Context(), req.Model, llm.ProxyPayload{
		Contents:         req.Contents,
		GenerationConfig: req.GenerationConfig,
	}, func(text string) error {
		return sse.WriteEvent("chunk", map[string]string{"text": text})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("model", req.Model).Msg("proxy stream failed")
		sse.WriteError("stream failed: " + err.Error())
		return
	}

	sse.WriteDone()
}

// decodeProxyRequest validates the shared proxy payload shape. It writes
// the error response itself and reports ok=false on failure.
func (s *Server) decodeProxyRequest(w http.ResponseWriter, r *http.Request) (ProxyRequest, bool) {
	// Credential presence is a configuration fault, the one case that
	// warrants a 500-class answer.
	if s.cfg.GeminiAPIKey == "" {
		s.errorResponse(w, http.StatusInternalServerError, "provider credential is not configured")
		return ProxyRequest{}, false
	}

	var req ProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return ProxyRequest{}, false
	}
	if len(req.Contents) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "contents is required")
		return ProxyRequest{}, false
	}
	if n := llm.CountInlineImages(req.Contents); n > llm.MaxProxyImages {
		s.errorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("too many images: %d provided, limit is %d", n, llm.MaxProxyImages))
		return ProxyRequest{}, false
	}
	if req.Model == "" {
		req.Model = s.proxyModel
	}
	return req, true
}
