// Package llm provides the provider gateway, model fallback and the
// two-stage image pipeline on top of the Gemini API.
package llm

import "time"

// ModelTier represents the capability level of a model.
type ModelTier string

const (
	// TierLite is for cheap vision extraction and simple calls.
	TierLite ModelTier = "lite"
	// TierStandard is the primary model for single-stage requests.
	TierStandard ModelTier = "standard"
	// TierAdvanced is for the reasoning stage of image requests.
	TierAdvanced ModelTier = "advanced"
)

// Config holds the model table and call bounds for the gateway.
type Config struct {
	Models        map[ModelTier]string
	TextTimeout   time.Duration
	VisionTimeout time.Duration
}

// DefaultConfig returns the default Gemini model table and timeouts.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		TextTimeout:   25 * time.Second,
		VisionTimeout: 40 * time.Second,
	}
}

// Model returns the model name for a tier, falling back to standard and
// then lite when the tier is not configured.
func (c *Config) Model(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return c.Models[TierLite]
}

// WithModel returns a copy of the config with one tier overridden.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{
		Models:        make(map[ModelTier]string, len(c.Models)),
		TextTimeout:   c.TextTimeout,
		VisionTimeout: c.VisionTimeout,
	}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
