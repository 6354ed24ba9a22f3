package llm

import (
	"encoding/json"
	"strings"
)

// DecodeProviderText normalizes the response shapes the provider is known
// to produce into plain text. Decoders run in fixed priority order —
// candidate list, output array, bare text — and the first non-empty
// match wins. All shapes empty yields "", which is a valid result.
func DecodeProviderText(raw []byte) string {
	if text := decodeCandidates(raw); text != "" {
		return text
	}
	if text := decodeOutputList(raw); text != "" {
		return text
	}
	return decodeBareText(raw)
}

// decodeCandidates handles {candidates:[{content:{parts:[{text}]}}]}.
func decodeCandidates(raw []byte) string {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Candidates) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// decodeOutputList handles {output:[...]} where entries are strings or
// objects carrying a text/content field.
func decodeOutputList(raw []byte) string {
	var resp struct {
		Output []json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Output) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, entry := range resp.Output {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			sb.WriteString(s)
			continue
		}
		var obj struct {
			Text    string `json:"text"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil {
			if obj.Text != "" {
				sb.WriteString(obj.Text)
			} else {
				sb.WriteString(obj.Content)
			}
		}
	}
	return sb.String()
}

// decodeBareText handles {text:"..."}.
func decodeBareText(raw []byte) string {
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	return resp.Text
}
