package modes

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestValid_Whitelist(t *testing.T) {
	r := newTestRegistry(t)

	for _, mode := range []string{"tesla", "travel", "shopee", "esim", "image", "landlord"} {
		assert.True(t, r.Valid(mode), mode)
	}

	assert.False(t, r.Valid("stocks"))
	assert.False(t, r.Valid(""))
}

func TestValid_CaseNormalized(t *testing.T) {
	r := newTestRegistry(t)

	assert.True(t, r.Valid("Shopee"))
	assert.True(t, r.Valid("  TESLA "))
}

func TestResolve_KnownMode(t *testing.T) {
	r := newTestRegistry(t)

	prompt := r.Resolve("shopee")
	assert.Contains(t, prompt, "Shopee")
	assert.NotEqual(t, genericPrompt, prompt)
}

func TestResolve_UnknownModeFallsBackToDefault(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, r.Resolve(Default), r.Resolve("definitely-not-a-mode"))
}

func TestResolve_EmptyBackingTextUsesGenericPrompt(t *testing.T) {
	r := newTestRegistry(t)
	r.prompts.Modes["travel"] = "   "

	assert.Equal(t, genericPrompt, r.Resolve("travel"))
}

func TestWrapStrategy_SubstitutesBothPlaceholders(t *testing.T) {
	r := newTestRegistry(t)

	out := r.WrapStrategy("3 SKUs, 120 orders", "should I raise prices?")
	assert.Contains(t, out, "3 SKUs, 120 orders")
	assert.Contains(t, out, "should I raise prices?")
	assert.NotContains(t, out, "{{.Extraction}}")
	assert.NotContains(t, out, "{{.Note}}")
}

func TestExtractionPrompt_IsNeutral(t *testing.T) {
	r := newTestRegistry(t)

	prompt := r.ExtractionPrompt()
	assert.NotEmpty(t, prompt)
	assert.Contains(t, strings.ToLower(prompt), "do not")
}

func TestNames_SortedWhitelist(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"esim", "image", "landlord", "shopee", "tesla", "travel"}, r.Names())
}
