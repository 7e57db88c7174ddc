// Package codec reads and writes the diagram container formats.
//
// Three extensions are recognized. ".drawio" and the legacy ".drawid" hold the
// model as plain XML. ".drawio.svg" is an SVG preview whose root element
// carries the model in a content attribute, either as plain escaped XML or as
// an <mxfile> whose <diagram> pages are compressed with
// base64(rawDeflate(percentEncode(xml))).
//
// Decode never panics on bad input; every failure is a *errors.DecodeError
// and callers treat it as "no model available".
package codec

import (
	"unicode/utf8"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// Decode extracts the model from the bytes of a container.
func Decode(data []byte, variant Variant) (Model, error) {
	switch variant {
	case XmlForm, OpaqueForm:
		if !utf8.Valid(data) {
			return "", errors.NewDecodeError("content is not valid UTF-8", nil).WithVariant(variant.String())
		}
		return Model(data), nil

	case SvgForm:
		content, err := contentAttribute(data)
		if err != nil {
			return "", withVariant(err, variant)
		}
		model, err := modelFromContent(content)
		if err != nil {
			return "", withVariant(err, variant)
		}
		return model, nil

	default:
		return "", errors.NewDecodeError("unsupported variant", errors.ErrUnknownFormat)
	}
}

// DecodeFile decodes f.Bytes, tagging any error with the file's path.
func DecodeFile(f *File) (Model, error) {
	model, err := Decode(f.Bytes, f.Variant)
	if err != nil {
		var de *errors.DecodeError
		if errors.As(err, &de) {
			return "", de.WithPath(f.Path)
		}
		return "", err
	}
	return model, nil
}

// Encode repackages an editor payload for a file of the given variant.
//
// The editor already produces the final serialization, so this is mostly a
// pass-through. An SVG target keeps an SVG payload as is and wraps a bare
// model in a minimal container. An XML target keeps a bare model and
// re-derives the model from an SVG payload.
func Encode(payload []byte, variant Variant) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.NewDecodeError("empty payload", nil).WithVariant(variant.String())
	}

	switch variant {
	case SvgForm:
		if looksLikeSVG(payload) {
			return payload, nil
		}
		if !utf8.Valid(payload) {
			return nil, errors.NewDecodeError("payload is not valid UTF-8", nil).WithVariant(variant.String())
		}
		return BuildSVG(Model(payload), false), nil

	case XmlForm, OpaqueForm:
		if looksLikeSVG(payload) {
			model, err := Decode(payload, SvgForm)
			if err != nil {
				return nil, withVariant(err, variant)
			}
			return []byte(model), nil
		}
		if !utf8.Valid(payload) {
			return nil, errors.NewDecodeError("payload is not valid UTF-8", nil).WithVariant(variant.String())
		}
		return payload, nil

	default:
		return nil, errors.NewDecodeError("unsupported variant", errors.ErrUnknownFormat)
	}
}

func withVariant(err error, variant Variant) error {
	var de *errors.DecodeError
	if errors.As(err, &de) {
		return de.WithVariant(variant.String())
	}
	return err
}
