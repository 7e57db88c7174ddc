package codec

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// CompressModel returns the compact diagram encoding the editor uses inside
// <diagram> elements: base64(rawDeflate(percentEncode(model))).
func CompressModel(model Model) string {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail and BestCompression is a valid level.
	zw, _ := flate.NewWriter(&buf, flate.BestCompression)
	_, _ = zw.Write([]byte(percentEncode(string(model))))
	_ = zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecompressModel reverses CompressModel. Whitespace inside the base64 text
// is ignored.
func DecompressModel(text string) (Model, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, text)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(compact, "="))
		if err != nil {
			return "", fmt.Errorf("invalid base64: %w", err)
		}
	}

	zr := flate.NewReader(bytes.NewReader(raw))
	defer func() { _ = zr.Close() }()
	inflated, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("inflate: %w", err)
	}

	decoded, err := url.PathUnescape(string(inflated))
	if err != nil {
		return "", fmt.Errorf("percent-decode: %w", err)
	}
	return Model(decoded), nil
}

// percentEncode escapes s the way encodeURIComponent does: everything except
// ASCII letters, digits and -_.!~*'() becomes %XX over its UTF-8 bytes.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0F])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
