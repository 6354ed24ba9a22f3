package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyGenerate_ForwardsAndNormalizes(t *testing.T) {
	var gotPath string
	var gotBody map[string]json.RawMessage
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"proxied answer"}]}}]}`))
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	text, err := proxy.Generate(context.Background(), "gemini-2.5-flash", ProxyPayload{
		Contents: json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
	})

	require.NoError(t, err)
	assert.Equal(t, "proxied answer", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent?key=test-key", gotPath)

	// Contents pass through untouched and safety settings are injected.
	assert.JSONEq(t, `[{"parts":[{"text":"hi"}]}]`, string(gotBody["contents"]))
	var settings []map[string]string
	require.NoError(t, json.Unmarshal(gotBody["safetySettings"], &settings))
	require.Len(t, settings, 4)
	for _, s := range settings {
		assert.Equal(t, "BLOCK_NONE", s["threshold"])
	}
}

func TestProxyGenerate_PassesGenerationConfig(t *testing.T) {
	var gotBody map[string]json.RawMessage
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	_, err := proxy.Generate(context.Background(), "m", ProxyPayload{
		Contents:         json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
		GenerationConfig: json.RawMessage(`{"temperature":0.2}`),
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":0.2}`, string(gotBody["generationConfig"]))
}

func TestProxyGenerate_ProviderError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	_, err := proxy.Generate(context.Background(), "m", ProxyPayload{
		Contents: json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
	})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
	assert.Contains(t, provErr.Body, "rate limited")
}

func TestProxyGenerate_EmptyContentsRejected(t *testing.T) {
	proxy := NewProxy("http://unused", "test-key", time.Second)

	_, err := proxy.Generate(context.Background(), "m", ProxyPayload{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "contents is required")
}

func TestProxyStream_EmitsFragments(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"chunk one \"}]}}]}\n\n")
		io.WriteString(w, ": keep-alive comment\n\n")
		io.WriteString(w, "data: not-json\n\n")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"chunk two\"}]}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	var chunks []string
	err := proxy.Stream(context.Background(), "m", ProxyPayload{
		Contents: json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
	}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"chunk one ", "chunk two"}, chunks)
}

func TestProxyStream_ProviderErrorBeforeStream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	err := proxy.Stream(context.Background(), "m", ProxyPayload{
		Contents: json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
	}, func(string) error { return nil })

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.Status)
}

func TestProxyStream_EmitErrorStops(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"text\":\"one\"}\n\n")
		io.WriteString(w, "data: {\"text\":\"two\"}\n\n")
	}))
	defer backend.Close()

	proxy := NewProxy(backend.URL, "test-key", 5*time.Second)
	calls := 0
	err := proxy.Stream(context.Background(), "m", ProxyPayload{
		Contents: json.RawMessage(`[{"parts":[{"text":"hi"}]}]`),
	}, func(string) error {
		calls++
		return context.Canceled
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCountInlineImages(t *testing.T) {
	contents := json.RawMessage(`[
		{"parts":[
			{"text":"describe these"},
			{"inline_data":{"mime_type":"image/png","data":"AAAA"}},
			{"inlineData":{"mimeType":"image/jpeg","data":"BBBB"}}
		]},
		{"parts":[{"inline_data":{"mime_type":"image/png","data":"CCCC"}}]}
	]`)

	assert.Equal(t, 3, CountInlineImages(contents))
	assert.Equal(t, 0, CountInlineImages(json.RawMessage(`[{"parts":[{"text":"no images"}]}]`)))
	assert.Equal(t, 0, CountInlineImages(json.RawMessage(`not json`)))
}
