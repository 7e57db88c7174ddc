package codec

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// acceptedMediaTypes are the data URI media types an export reply may carry.
var acceptedMediaTypes = map[string]bool{
	"":                true,
	"image/svg+xml":   true,
	"application/xml": true,
	"text/xml":        true,
	"text/plain":      true,
}

// DecodeDataURI returns the payload of an export reply. It accepts base64 and
// percent-encoded data URIs with an SVG or XML media type, and a bare payload
// that already starts with '<'.
func DecodeDataURI(s string) ([]byte, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "<") {
		return []byte(trimmed), nil
	}
	if !strings.HasPrefix(trimmed, "data:") {
		return nil, errors.NewDecodeError("export data is not a data URI", nil)
	}

	comma := strings.IndexByte(trimmed, ',')
	if comma < 0 {
		return nil, errors.NewDecodeError("data URI has no payload", nil)
	}
	header, body := trimmed[len("data:"):comma], trimmed[comma+1:]

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if !acceptedMediaTypes[mediaType] {
		return nil, errors.NewDecodeError("unsupported data URI media type "+mediaType, errors.ErrUnknownFormat)
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
			if err != nil {
				return nil, errors.NewDecodeError("invalid base64 in data URI", err)
			}
		}
		return data, nil
	}

	decoded, err := url.PathUnescape(body)
	if err != nil {
		return nil, errors.NewDecodeError("invalid percent-encoding in data URI", err)
	}
	return []byte(decoded), nil
}
