package llm

import (
	"context"
	"time"
)

// fakeCall records one invocation against the fake client.
type fakeCall struct {
	kind   string // "text" or "vision"
	tier   ModelTier
	system string
	input  string
	images int
}

// fakeClient is a scriptable Client for fallback and pipeline tests.
type fakeClient struct {
	results map[ModelTier]Result
	errs    map[ModelTier]error
	calls   []fakeCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		results: make(map[ModelTier]Result),
		errs:    make(map[ModelTier]error),
	}
}

func (f *fakeClient) GenerateText(_ context.Context, tier ModelTier, systemPrompt, input string) (Result, error) {
	f.calls = append(f.calls, fakeCall{kind: "text", tier: tier, system: systemPrompt, input: input})
	if err := f.errs[tier]; err != nil {
		return Result{}, err
	}
	return f.resultFor(tier), nil
}

func (f *fakeClient) GenerateVision(_ context.Context, tier ModelTier, systemPrompt, input string, images []Image) (Result, error) {
	f.calls = append(f.calls, fakeCall{kind: "vision", tier: tier, system: systemPrompt, input: input, images: len(images)})
	if err := f.errs[tier]; err != nil {
		return Result{}, err
	}
	return f.resultFor(tier), nil
}

func (f *fakeClient) ModelName(tier ModelTier) string {
	return "model-" + string(tier)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) resultFor(tier ModelTier) Result {
	if res, ok := f.results[tier]; ok {
		return res
	}
	return Result{Text: "answer from " + string(tier), Model: f.ModelName(tier), Elapsed: 10 * time.Millisecond}
}
