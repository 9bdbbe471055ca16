package metadata

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeBytes turns a raw tag or chunk value into text.
//
// A NUL anywhere in the value is taken as a sign of a wide-character string
// and the bytes are read as UTF-16LE. Otherwise valid UTF-8 is used as is and
// anything else is read as Latin-1. Surrounding NULs and whitespace are
// always removed.
func DecodeBytes(b []byte) string {
	var s string
	switch {
	case bytes.IndexByte(b, 0) >= 0:
		if v, ok := decodeUTF16(b, binary.LittleEndian); ok {
			s = v
		} else {
			s = decodeLatin1(b)
		}
	case utf8.Valid(b):
		s = string(b)
	default:
		s = decodeLatin1(b)
	}
	return cleanText(s)
}

// DecodeString strips a value that is already text.
func DecodeString(s string) string {
	return cleanText(s)
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func decodeUTF16(b []byte, order binary.ByteOrder) (string, bool) {
	if len(b)%2 != 0 {
		return "", false
	}
	endian := unicode.LittleEndian
	if order == binary.BigEndian {
		endian = unicode.BigEndian
	}
	out, err := decodeWith(unicode.UTF16(endian, unicode.IgnoreBOM), b)
	if err != nil {
		return "", false
	}
	return out, true
}

func decodeLatin1(b []byte) string {
	out, err := decodeWith(charmap.ISO8859_1, b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, nil))
	}
	return out
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// UserComment values start with an 8 byte character code.
var userCommentCodes = []struct {
	prefix string
	wide   bool
}{
	{"ASCII\x00\x00\x00", false},
	{"UNICODE\x00", true},
	{"JIS\x00\x00\x00\x00\x00", false},
	{"\x00\x00\x00\x00\x00\x00\x00\x00", false},
}

// decodeUserComment removes the character code header of an EXIF
// UserComment before decoding. Values without a known header go through
// DecodeBytes unchanged.
func decodeUserComment(b []byte, order binary.ByteOrder) string {
	for _, code := range userCommentCodes {
		if !bytes.HasPrefix(b, []byte(code.prefix)) {
			continue
		}
		body := b[len(code.prefix):]
		if code.wide {
			if s, ok := decodeUTF16(body, order); ok {
				return cleanText(s)
			}
		}
		return DecodeBytes(bytes.TrimRight(body, "\x00"))
	}
	return DecodeBytes(b)
}
