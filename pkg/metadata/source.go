package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	exifHeader   = []byte("Exif\x00\x00")
	mpfHeader    = []byte("MPF\x00")
)

// Source holds the metadata containers found in one image file: the parsed
// EXIF directory and any textual key/value chunks.
type Source struct {
	Format string
	Text   map[string]string
	// MultiPicture is set for JPEG files carrying an MPF index (MPO).
	MultiPicture bool
	// AnimationFrames is the frame count of an APNG acTL chunk, 0 for
	// still PNGs and other formats.
	AnimationFrames int

	exif *exif.Exif
	err  error
}

// Scan locates EXIF and text metadata in the raw bytes of an image file.
// Problems are remembered on the Source and reported by Extract; Scan itself
// never fails.
func Scan(data []byte, format string) *Source {
	s := &Source{Format: format, Text: map[string]string{}}

	var raw []byte
	var err error
	switch format {
	case "jpeg":
		raw, err = s.scanJPEG(data)
	case "png":
		raw, err = s.scanPNG(data)
	case "webp":
		raw, err = webp.GetMetadata(data, "EXIF")
		if err != nil {
			// No EXIF chunk is the common case.
			raw, err = nil, nil
		}
	case "tiff":
		raw = data
	}
	if err != nil {
		s.err = err
	}

	if len(raw) > 0 {
		s.setEXIF(raw)
	}
	return s
}

// NewSource builds a Source from an already extracted EXIF block (TIFF
// header first, optionally preceded by "Exif\0\0") and text chunks.
func NewSource(format string, rawEXIF []byte, text map[string]string) *Source {
	s := &Source{Format: format, Text: map[string]string{}}
	for k, v := range text {
		s.Text[k] = v
	}
	if len(rawEXIF) > 0 {
		s.setEXIF(rawEXIF)
	}
	return s
}

func (s *Source) setEXIF(raw []byte) {
	raw = bytes.TrimPrefix(raw, exifHeader)
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		if x == nil || exif.IsCriticalError(err) {
			s.err = errors.Join(s.err, fmt.Errorf("exif: %w", err))
			return
		}
	}
	s.exif = x
}

// HasEXIF reports whether an EXIF directory was parsed.
func (s *Source) HasEXIF() bool {
	return s.exif != nil
}

// Err returns the first problem met while scanning, if any.
func (s *Source) Err() error {
	return s.err
}

// Orientation returns the EXIF orientation (1..8), or 1 when absent.
func (s *Source) Orientation() int {
	if s.exif == nil {
		return 1
	}
	tag, err := s.exif.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

func (s *Source) scanJPEG(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("jpeg: missing SOI marker")
	}
	var raw []byte
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return raw, fmt.Errorf("jpeg: bad marker at offset %d", i)
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			// fill byte
			i++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return raw, nil
		}

		n := int(binary.BigEndian.Uint16(data[i+2:]))
		if n < 2 || i+2+n > len(data) {
			return raw, fmt.Errorf("jpeg: segment 0x%02X overruns file", marker)
		}
		payload := data[i+4 : i+2+n]
		switch marker {
		case 0xE1:
			if raw == nil && bytes.HasPrefix(payload, exifHeader) {
				raw = payload[len(exifHeader):]
			}
		case 0xE2:
			if bytes.HasPrefix(payload, mpfHeader) {
				s.MultiPicture = true
			}
		case 0xFE:
			if _, ok := s.Text["comment"]; !ok {
				s.Text["comment"] = DecodeBytes(payload)
			}
		}
		i += 2 + n
	}
	return raw, nil
}

func (s *Source) scanPNG(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("png: missing signature")
	}
	var raw []byte
	i := len(pngSignature)
	for i+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		if n < 0 || i+12+n > len(data) {
			return raw, fmt.Errorf("png: chunk %q overruns file", typ)
		}
		body := data[i+8 : i+8+n]
		switch typ {
		case "eXIf":
			raw = body
		case "acTL":
			if len(body) >= 4 {
				s.AnimationFrames = int(binary.BigEndian.Uint32(body))
			}
		case "tEXt", "zTXt", "iTXt":
			key, val, err := parseTextChunk(typ, body)
			if err != nil {
				return raw, err
			}
			if _, ok := s.Text[key]; !ok && key != "" {
				s.Text[key] = val
			}
		case "IEND":
			return raw, nil
		}
		i += 12 + n
	}
	return raw, nil
}

// parseTextChunk decodes the keyword and value of a PNG text chunk.
func parseTextChunk(typ string, body []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return "", "", fmt.Errorf("png: %s chunk without keyword terminator", typ)
	}
	keyword := decodeLatin1(key)

	switch typ {
	case "tEXt":
		return keyword, decodeLatin1(rest), nil
	case "zTXt":
		if len(rest) < 1 {
			return "", "", fmt.Errorf("png: short zTXt chunk %q", keyword)
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", "", fmt.Errorf("png: zTXt %q: %w", keyword, err)
		}
		return keyword, decodeLatin1(text), nil
	default:
		if len(rest) < 2 {
			return "", "", fmt.Errorf("png: short iTXt chunk %q", keyword)
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// language tag, then translated keyword
		for range 2 {
			_, after, ok := bytes.Cut(rest, []byte{0})
			if !ok {
				return "", "", fmt.Errorf("png: truncated iTXt chunk %q", keyword)
			}
			rest = after
		}
		if compressed {
			text, err := inflate(rest)
			if err != nil {
				return "", "", fmt.Errorf("png: iTXt %q: %w", keyword, err)
			}
			rest = text
		}
		return keyword, string(bytes.ToValidUTF8(rest, []byte("�"))), nil
	}
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
