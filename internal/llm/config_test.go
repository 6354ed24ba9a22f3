package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "gemini-2.5-flash-lite", config.Model(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.Model(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.Model(TierAdvanced))
	assert.Equal(t, 25*time.Second, config.TextTimeout)
	assert.Equal(t, 40*time.Second, config.VisionTimeout)
}

func TestModel_FallbackChain(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{TierLite: "lite-model"}}

	// Unknown tier falls back to standard, then lite.
	assert.Equal(t, "lite-model", config.Model("unknown"))
	assert.Equal(t, "lite-model", config.Model(TierAdvanced))
}

func TestWithModel_CopiesConfig(t *testing.T) {
	config := DefaultConfig()
	custom := config.WithModel(TierAdvanced, "custom-model")

	assert.Equal(t, "gemini-2.5-pro", config.Model(TierAdvanced))
	assert.Equal(t, "custom-model", custom.Model(TierAdvanced))
	assert.Equal(t, "gemini-2.5-flash-lite", custom.Model(TierLite))
	assert.Equal(t, config.TextTimeout, custom.TextTimeout)
}
