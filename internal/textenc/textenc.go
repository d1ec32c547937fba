// Package textenc resolves configured text encoding names and decodes file
// contents to UTF-8 strings.
package textenc

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"git.home.luguber.info/inful/flatsite/internal/errors"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

// Lookup resolves an encoding name via the IANA index. An empty name and the
// common utf8 spellings resolve to UTF-8 without an index lookup.
func Lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, errors.ValidationFailed("encoding", "unknown text encoding").
			WithContext("encoding", name)
	}
	return enc, nil
}

// Decoder is a reusable byte-to-string decode function for one encoding.
type Decoder func(data []byte) (string, error)

// NewDecoder resolves name once and returns a Decoder bound to it.
func NewDecoder(name string) (Decoder, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		// Source files are overwhelmingly UTF-8 already; skip the transform.
		return func(data []byte) (string, error) {
			return string(data), nil
		}, nil
	}
	return func(data []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}, nil
}
