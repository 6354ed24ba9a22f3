package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultProxyBaseURL is the generative-language REST endpoint the proxy
// forwards to.
const DefaultProxyBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// MaxProxyImages is the inline image cap on the proxy path. Requests over
// the cap are rejected, matching the advisory path policy.
const MaxProxyImages = 10

// ProxyPayload is the caller-shaped request body forwarded to the
// provider. Contents is passed through untouched; safety settings are
// injected server-side.
type ProxyPayload struct {
	Contents         json.RawMessage `json:"contents"`
	GenerationConfig json.RawMessage `json:"generationConfig,omitempty"`
}

// ProviderError is a non-success outcome from the provider REST API.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// Proxy forwards caller-shaped payloads to the generative-language REST
// API and normalizes the heterogeneous response shapes into plain text.
type Proxy struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewProxy creates a REST passthrough client. baseURL falls back to the
// public endpoint when empty.
func NewProxy(baseURL, apiKey string, timeout time.Duration) *Proxy {
	if baseURL == "" {
		baseURL = DefaultProxyBaseURL
	}
	return &Proxy{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate forwards one payload and returns the normalized text. An empty
// normalized text is a valid outcome, not an error.
func (p *Proxy) Generate(ctx context.Context, model string, payload ProxyPayload) (string, error) {
	body, err := p.buildBody(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	return DecodeProviderText(raw), nil
}

// Stream forwards one payload to the streaming endpoint and calls emit
// for each text fragment as it arrives. Malformed or textless segments
// are skipped, not fatal; nothing is buffered beyond one SSE line.
func (p *Proxy) Stream(ctx context.Context, model string, payload ProxyPayload, emit func(text string) error) error {
	body, err := p.buildBody(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider stream failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if chunk == "" || chunk == "[DONE]" {
			continue
		}
		text := DecodeProviderText([]byte(chunk))
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("provider stream read failed: %w", err)
	}
	return nil
}

// CountInlineImages walks a contents payload and counts inline image
// parts, accepting both snake_case and camelCase part keys.
func CountInlineImages(contents json.RawMessage) int {
	var items []struct {
		Parts []map[string]json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(contents, &items); err != nil {
		return 0
	}

	count := 0
	for _, item := range items {
		for _, part := range item.Parts {
			if _, ok := part["inline_data"]; ok {
				count++
				continue
			}
			if _, ok := part["inlineData"]; ok {
				count++
			}
		}
	}
	return count
}

func (p *Proxy) buildBody(payload ProxyPayload) ([]byte, error) {
	if len(payload.Contents) == 0 {
		return nil, fmt.Errorf("contents is required")
	}

	// Safety filtering is disabled on the proxy the same way the SDK
	// path disables it.
	out := map[string]json.RawMessage{
		"contents":       payload.Contents,
		"safetySettings": json.RawMessage(blockNoneSettings),
	}
	if len(payload.GenerationConfig) > 0 {
		out["generationConfig"] = payload.GenerationConfig
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider payload: %w", err)
	}
	return body, nil
}

const blockNoneSettings = `[
	{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_HATE_SPEECH","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","threshold":"BLOCK_NONE"}
]`

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
