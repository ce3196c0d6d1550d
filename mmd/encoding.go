package mmd

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextEncoding is the encoding of every text buffer in a file.
type TextEncoding byte

const (
	UTF16LE TextEncoding = 0
	UTF8    TextEncoding = 1
)

func (e TextEncoding) String() string {
	switch e {
	case UTF16LE:
		return "UTF-16LE"
	case UTF8:
		return "UTF-8"
	}
	return fmt.Sprintf("TextEncoding(%d)", byte(e))
}

var utf16le encoding.Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeText(data []byte, enc TextEncoding) (string, error) {
	switch enc {
	case UTF8:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid UTF-8 sequence", ErrEncoding)
		}
		return string(data), nil
	case UTF16LE:
		if len(data)%2 != 0 {
			return "", fmt.Errorf("%w: odd UTF-16 byte length %d", ErrEncoding, len(data))
		}
		if err := checkSurrogates(data); err != nil {
			return "", err
		}
		s, _, err := transform.Bytes(utf16le.NewDecoder(), data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return string(s), nil
	}
	return "", fmt.Errorf("%w: unknown encoding %d", ErrEncoding, enc)
}

// checkSurrogates rejects unpaired surrogates, which the x/text decoder would
// silently replace with U+FFFD.
func checkSurrogates(data []byte) error {
	for i := 0; i < len(data); i += 2 {
		c := rune(binary.LittleEndian.Uint16(data[i:]))
		if !utf16.IsSurrogate(c) {
			continue
		}
		if c >= 0xdc00 || i+3 >= len(data) {
			return fmt.Errorf("%w: unpaired UTF-16 surrogate at byte %d", ErrEncoding, i)
		}
		lo := rune(binary.LittleEndian.Uint16(data[i+2:]))
		if lo < 0xdc00 || lo > 0xdfff {
			return fmt.Errorf("%w: unpaired UTF-16 surrogate at byte %d", ErrEncoding, i)
		}
		i += 2
	}
	return nil
}

func encodeText(s string, enc TextEncoding) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: %q is not valid UTF-8", ErrEncoding, s)
	}
	switch enc {
	case UTF8:
		return []byte(s), nil
	case UTF16LE:
		b, _, err := transform.Bytes(utf16le.NewEncoder(), []byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown encoding %d", ErrEncoding, enc)
}
