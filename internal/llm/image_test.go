package llm

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImage_DataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	img, err := ParseImage("data:image/png;base64," + payload)

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, []byte("png-bytes"), img.Data)
}

func TestParseImage_BareBase64DefaultsMIME(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	img, err := ParseImage(payload)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIME)
}

func TestParseImage_Malformed(t *testing.T) {
	_, err := ParseImage("data:image/png;base64")
	assert.Error(t, err)

	_, err = ParseImage("not!!base64@@")
	assert.Error(t, err)

	_, err = ParseImage("data:image/png;base64,")
	assert.Error(t, err)
}

func TestParseImages_ReportsFailingIndex(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte("ok"))

	_, err := ParseImages([]string{good, "@broken@"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 1")
}

func TestParseImages_Empty(t *testing.T) {
	images, err := ParseImages(nil)

	require.NoError(t, err)
	assert.Empty(t, images)
}
