// Package advisor implements the request orchestration core: mode
// validation, quota gating, pipeline dispatch, post-success accounting
// and envelope assembly. The transport layer never sees an unhandled
// fault from this package; every failure becomes a well-formed envelope.
package advisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/victor/decision-advisor/internal/llm"
	"github.com/victor/decision-advisor/internal/modes"
	"github.com/victor/decision-advisor/internal/quota"
	"github.com/victor/decision-advisor/internal/store"
)

// MaxImages is the inline image cap for advisory requests. Requests over
// the cap are rejected with a client error, never silently truncated.
const MaxImages = 6

// busyMessage is the user-facing text when the provider fails even after
// model fallback.
const busyMessage = "The advisor is busy right now. Please try again in a moment."

// Request is one inbound advisory request.
type Request struct {
	Mode     string   `json:"mode" validate:"required"`
	CallerID string   `json:"callerId"`
	Text     string   `json:"input"`
	Images   []string `json:"images" validate:"omitempty,max=6"`
}

// QuotaInfo reports the caller's quota state on the envelope.
type QuotaInfo struct {
	Tier      string `json:"tier"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Response is the orchestrator's output envelope. Answer is canonical;
// Output and Result carry the same value as a compatibility shim for
// older front-end consumers and are deprecated.
type Response struct {
	Success   bool       `json:"success"`
	Answer    string     `json:"answer,omitempty"`
	Output    string     `json:"output,omitempty"`
	Result    string     `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Model     string     `json:"modelUsed,omitempty"`
	Quota     *QuotaInfo `json:"quota,omitempty"`
	RequestID string     `json:"requestId"`
	Timestamp int64      `json:"timestamp"`

	// Status is the HTTP status the transport should use. Business
	// failures stay 200 so front-end handling is uniform; only
	// malformed input is 4xx.
	Status int `json:"-"`
}

// Generator produces text with model fallback (single-stage path).
type Generator interface {
	Generate(ctx context.Context, systemPrompt, input string) (llm.Result, error)
}

// ImagePipeline runs the two-stage extract-then-advise path.
type ImagePipeline interface {
	Run(ctx context.Context, extractPrompt string, images []llm.Image, advisePrompt string, wrap func(extraction string) string) (llm.Result, error)
}

// Ledger gates and accounts per-caller usage.
type Ledger interface {
	Check(ctx context.Context, id string) quota.Decision
	Commit(ctx context.Context, id string) error
}

// UsageLogger records delivered answers.
type UsageLogger interface {
	LogUsage(ctx context.Context, entry store.UsageEntry) error
}

// Service orchestrates advisory requests.
type Service struct {
	modes    *modes.Registry
	ledger   Ledger
	text     Generator
	images   ImagePipeline
	usage    UsageLogger
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService wires the orchestrator. usage may be nil to disable the
// usage log.
func NewService(registry *modes.Registry, ledger Ledger, text Generator, images ImagePipeline, usage UsageLogger, logger zerolog.Logger) *Service {
	return &Service{
		modes:    registry,
		ledger:   ledger,
		text:     text,
		images:   images,
		usage:    usage,
		validate: validator.New(),
		logger:   logger,
	}
}

// Ask handles one advisory request end to end. It never panics and never
// returns an error; all outcomes are envelopes.
func (s *Service) Ask(ctx context.Context, req Request) (resp Response) {
	requestID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("request_id", requestID).Msg("orchestrator panic recovered")
			resp = s.failure(requestID, http.StatusOK, busyMessage)
		}
	}()

	// Payload validation: structural first, then the hard mode check.
	if err := s.validate.Struct(req); err != nil {
		return s.failure(requestID, http.StatusBadRequest, "invalid request: "+err.Error())
	}
	if !s.modes.Valid(req.Mode) {
		return s.failure(requestID, http.StatusBadRequest,
			fmt.Sprintf("invalid mode %q, expected one of %v", req.Mode, s.modes.Names()))
	}
	if req.Text == "" && len(req.Images) == 0 {
		return s.failure(requestID, http.StatusBadRequest, "input is required: provide text, images, or both")
	}
	if len(req.Images) > MaxImages {
		return s.failure(requestID, http.StatusBadRequest,
			fmt.Sprintf("too many images: %d provided, limit is %d", len(req.Images), MaxImages))
	}
	images, err := llm.ParseImages(req.Images)
	if err != nil {
		return s.failure(requestID, http.StatusBadRequest, "invalid image data: "+err.Error())
	}

	caller := req.CallerID
	guest := caller == "" || caller == quota.GuestID

	// Quota gate. Guests skip it entirely; tracked callers over their
	// tier limit get a business failure, not an HTTP error.
	var decision quota.Decision
	if !guest {
		decision = s.ledger.Check(ctx, caller)
		if decision.Tracked && !decision.Allowed {
			out := s.failure(requestID, http.StatusOK,
				fmt.Sprintf("Daily limit reached (%d/%d). Upgrade your plan or come back tomorrow.",
					decision.Used, decision.Limit))
			out.Quota = &QuotaInfo{
				Tier:      decision.Tier,
				Used:      decision.Used,
				Limit:     decision.Limit,
				Remaining: decision.Remaining,
			}
			return out
		}
	}

	prompt := s.modes.Resolve(req.Mode)

	res, err := s.dispatch(ctx, req, prompt, images)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Str("mode", req.Mode).Msg("provider call failed")
		return s.failure(requestID, http.StatusOK, busyMessage+" ("+err.Error()+")")
	}

	// Usage is billed on delivered value: the commit happens only now,
	// after a successful provider response.
	if !guest && decision.Tracked {
		if err := s.ledger.Commit(ctx, caller); err != nil {
			s.logger.Warn().Err(err).Str("caller", caller).Msg("quota commit failed after delivery")
		}
	}
	s.logUsage(ctx, requestID, req, caller, res)

	return Response{
		Success:   true,
		Answer:    res.Text,
		Output:    res.Text,
		Result:    res.Text,
		Model:     res.Model,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Status:    http.StatusOK,
	}
}

// dispatch picks the pipeline by payload shape: image-bearing requests
// run the two-stage pipeline, text-only requests run with model fallback.
func (s *Service) dispatch(ctx context.Context, req Request, prompt string, images []llm.Image) (llm.Result, error) {
	if len(images) == 0 {
		return s.text.Generate(ctx, prompt, req.Text)
	}

	return s.images.Run(ctx, s.modes.ExtractionPrompt(), images, prompt, func(extraction string) string {
		return s.modes.WrapStrategy(extraction, req.Text)
	})
}

func (s *Service) logUsage(ctx context.Context, requestID string, req Request, caller string, res llm.Result) {
	if s.usage == nil {
		return
	}
	if caller == "" {
		caller = quota.GuestID
	}
	entry := store.UsageEntry{
		CallerID:  caller,
		Mode:      req.Mode,
		Model:     res.Model,
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	if id, err := uuid.Parse(requestID); err == nil {
		entry.ID = id
	}
	if err := s.usage.LogUsage(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("usage log write failed")
	}
}

func (s *Service) failure(requestID string, status int, message string) Response {
	return Response{
		Success:   false,
		Error:     message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Status:    status,
	}
}
