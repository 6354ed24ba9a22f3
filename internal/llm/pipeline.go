package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// TwoStage runs the image pipeline: a cheap vision model extracts the
// data visible in the images, then a stronger model reasons over the
// extracted text. Splitting the work keeps the expensive reasoning call
// on compact text instead of raw images.
//
// There is no model fallback inside a stage: if either stage fails the
// pipeline aborts and the stage error surfaces to the caller.
type TwoStage struct {
	client      Client
	extractTier ModelTier
	adviseTier  ModelTier
	logger      zerolog.Logger
}

// NewTwoStage creates the pipeline with the given stage tiers.
func NewTwoStage(client Client, extractTier, adviseTier ModelTier, logger zerolog.Logger) *TwoStage {
	return &TwoStage{client: client, extractTier: extractTier, adviseTier: adviseTier, logger: logger}
}

// Run executes both stages in order. wrap builds the stage-2 input from
// the stage-1 extraction text; stage 2 never runs if stage 1 fails.
func (t *TwoStage) Run(ctx context.Context, extractPrompt string, images []Image, advisePrompt string, wrap func(extraction string) string) (Result, error) {
	extraction, err := t.client.GenerateVision(ctx, t.extractTier, extractPrompt, "", images)
	if err != nil {
		return Result{}, fmt.Errorf("extraction stage failed: %w", err)
	}

	t.logger.Debug().
		Str("model", extraction.Model).
		Dur("elapsed", extraction.Elapsed).
		Int("chars", len(extraction.Text)).
		Msg("extraction stage complete")

	advice, err := t.client.GenerateText(ctx, t.adviseTier, advisePrompt, wrap(extraction.Text))
	if err != nil {
		return Result{}, fmt.Errorf("reasoning stage failed: %w", err)
	}

	advice.Elapsed += extraction.Elapsed
	if strings.TrimSpace(advice.Text) == "" {
		advice.Text = EmptyResultMessage
	}
	return advice, nil
}
