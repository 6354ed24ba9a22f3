package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// EmptyResultMessage replaces an answer when the provider succeeds but
// returns no text. Shown to the user as-is.
const EmptyResultMessage = "I could not come up with an answer this time. Please rephrase your question and try again."

// Fallback invokes the primary model and degrades to the secondary one on
// failure. The state machine is: try primary; on failure try secondary;
// on a second failure surface the secondary's error to the caller.
type Fallback struct {
	client    Client
	primary   ModelTier
	secondary ModelTier
	logger    zerolog.Logger
}

// NewFallback creates a fallback controller over the given tiers.
func NewFallback(client Client, primary, secondary ModelTier, logger zerolog.Logger) *Fallback {
	return &Fallback{client: client, primary: primary, secondary: secondary, logger: logger}
}

// Generate runs a text generation with model degradation. A result with
// empty text from either model is a success and is substituted with the
// fixed placeholder, never treated as a failure.
func (f *Fallback) Generate(ctx context.Context, systemPrompt, input string) (Result, error) {
	res, err := f.client.GenerateText(ctx, f.primary, systemPrompt, input)
	if err != nil {
		f.logger.Warn().Err(err).
			Str("primary", f.client.ModelName(f.primary)).
			Str("secondary", f.client.ModelName(f.secondary)).
			Msg("primary model failed, retrying with secondary")

		res, err = f.client.GenerateText(ctx, f.secondary, systemPrompt, input)
		if err != nil {
			return Result{}, fmt.Errorf("both models failed: %w", err)
		}
	}

	if strings.TrimSpace(res.Text) == "" {
		res.Text = EmptyResultMessage
	}
	return res, nil
}
