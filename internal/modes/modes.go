// Package modes maps advisory mode names to their system prompts.
// Prompts are stored as a JSON file and embedded at compile time.
package modes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed prompts.json
var promptFile []byte

// Default is the mode substituted when an unknown name is resolved.
const Default = "tesla"

// genericPrompt is the fallback when a mode has no backing prompt text.
const genericPrompt = "You are a pragmatic decision advisor. The user describes a choice they are facing; " +
	"analyse the options against their stated constraints and give one clear recommendation, " +
	"the main reasons for it, and the biggest risk to watch."

// promptData mirrors the embedded prompts.json layout.
type promptData struct {
	Modes      map[string]string `json:"modes"`
	Extraction string            `json:"extraction"`
	Strategy   string            `json:"strategy"`
}

// Registry resolves mode names to system prompts. Resolution is a pure
// function of the mode name and the embedded prompt file.
type Registry struct {
	prompts promptData
	logger  zerolog.Logger
}

// NewRegistry parses the embedded prompt file.
func NewRegistry(logger zerolog.Logger) (*Registry, error) {
	var data promptData
	if err := json.Unmarshal(promptFile, &data); err != nil {
		return nil, fmt.Errorf("failed to parse embedded prompts: %w", err)
	}
	if _, ok := data.Modes[Default]; !ok {
		return nil, fmt.Errorf("prompt file is missing the default mode %q", Default)
	}
	return &Registry{prompts: data, logger: logger}, nil
}

// Valid reports whether name is a whitelisted mode. Names are
// case-normalized before the check.
func (r *Registry) Valid(name string) bool {
	_, ok := r.prompts.Modes[normalize(name)]
	return ok
}

// Resolve returns the system prompt for a mode. An unknown mode logs a
// warning and resolves the default mode instead of failing; a mode whose
// backing text is empty falls back to the generic advisor prompt.
func (r *Registry) Resolve(name string) string {
	mode := normalize(name)
	prompt, ok := r.prompts.Modes[mode]
	if !ok {
		r.logger.Warn().Str("mode", name).Str("fallback", Default).Msg("unknown mode, using default")
		prompt = r.prompts.Modes[Default]
	}
	if strings.TrimSpace(prompt) == "" {
		return genericPrompt
	}
	return prompt
}

// ExtractionPrompt returns the neutral stage-1 instruction for
// image-bearing requests: describe only, no advice.
func (r *Registry) ExtractionPrompt() string {
	if strings.TrimSpace(r.prompts.Extraction) == "" {
		return "Describe the data visible in the attached images precisely and factually. Do not give advice."
	}
	return r.prompts.Extraction
}

// WrapStrategy builds the stage-2 user input: the stage-1 extraction and
// the user's note substituted into the strategy template.
func (r *Registry) WrapStrategy(extraction, note string) string {
	tmpl := r.prompts.Strategy
	if strings.TrimSpace(tmpl) == "" {
		tmpl = "Observed data:\n{{.Extraction}}\n\nUser note: {{.Note}}"
	}
	out := strings.ReplaceAll(tmpl, "{{.Extraction}}", extraction)
	return strings.ReplaceAll(out, "{{.Note}}", note)
}

// Names returns the whitelisted mode names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.prompts.Modes))
	for name := range r.prompts.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
