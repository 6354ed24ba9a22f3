package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeProviderText_Candidates(t *testing.T) {
	raw := `{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"world"}]}}]}`

	assert.Equal(t, "hello world", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_CandidatesFirstOnly(t *testing.T) {
	raw := `{"candidates":[
		{"content":{"parts":[{"text":"primary"}]}},
		{"content":{"parts":[{"text":"ignored"}]}}
	]}`

	assert.Equal(t, "primary", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_OutputStrings(t *testing.T) {
	raw := `{"output":["part one, ","part two"]}`

	assert.Equal(t, "part one, part two", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_OutputObjects(t *testing.T) {
	raw := `{"output":[{"text":"from text "},{"content":"from content"}]}`

	assert.Equal(t, "from text from content", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_BareText(t *testing.T) {
	raw := `{"text":"just text"}`

	assert.Equal(t, "just text", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_CandidatesWinOverOthers(t *testing.T) {
	raw := `{"candidates":[{"content":{"parts":[{"text":"candidate"}]}}],"output":["out"],"text":"bare"}`

	assert.Equal(t, "candidate", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_EmptyCandidatesFallThrough(t *testing.T) {
	// An empty candidate list should not mask a usable bare text field.
	raw := `{"candidates":[],"text":"bare"}`

	assert.Equal(t, "bare", DecodeProviderText([]byte(raw)))
}

func TestDecodeProviderText_Unrecognized(t *testing.T) {
	assert.Equal(t, "", DecodeProviderText([]byte(`{"something":"else"}`)))
	assert.Equal(t, "", DecodeProviderText([]byte(`not json`)))
	assert.Equal(t, "", DecodeProviderText([]byte(`{}`)))
}
