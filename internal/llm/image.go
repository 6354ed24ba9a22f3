package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// defaultImageMIME is assumed when a bare base64 payload carries no
// data-URL prefix to sniff the type from.
const defaultImageMIME = "image/jpeg"

// ParseImage decodes a caller-supplied image string. Accepts a data URL
// ("data:image/png;base64,....") or a bare base64 payload.
func ParseImage(s string) (Image, error) {
	mime := defaultImageMIME
	payload := strings.TrimSpace(s)

	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return Image{}, fmt.Errorf("malformed data URL: missing payload")
		}
		header := payload[len("data:"):comma]
		payload = payload[comma+1:]
		if semi := strings.Index(header, ";"); semi >= 0 {
			header = header[:semi]
		}
		if header != "" {
			mime = header
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("empty image payload")
	}
	return Image{MIME: mime, Data: data}, nil
}

// ParseImages decodes a list of caller-supplied images, failing on the
// first malformed entry.
func ParseImages(in []string) ([]Image, error) {
	images := make([]Image, 0, len(in))
	for i, s := range in {
		img, err := ParseImage(s)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}
