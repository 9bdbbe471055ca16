package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"sort"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeUndefined = 7
	tagExifIFD    = 34665
	tagOrient     = 274
)

type testTag struct {
	id  uint16
	typ uint16
	val []byte
}

func asciiTag(id uint16, s string) testTag {
	return testTag{id, typeASCII, append([]byte(s), 0)}
}

func wideTag(id uint16, s string) testTag {
	var b []byte
	for _, r := range utf16.Encode([]rune(s)) {
		b = binary.LittleEndian.AppendUint16(b, r)
	}
	return testTag{id, typeByte, append(b, 0, 0)}
}

func ifdSize(tags []testTag) int {
	n := 2 + 12*len(tags) + 4
	for _, t := range tags {
		if len(t.val) > 4 {
			n += len(t.val) + len(t.val)%2
		}
	}
	return n
}

func writeIFD(buf []byte, off int, tags []testTag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].id < tags[j].id })
	le := binary.LittleEndian
	le.PutUint16(buf[off:], uint16(len(tags)))
	data := off + 2 + 12*len(tags) + 4
	for i, t := range tags {
		e := off + 2 + 12*i
		le.PutUint16(buf[e:], t.id)
		le.PutUint16(buf[e+2:], t.typ)
		count := len(t.val)
		switch t.typ {
		case typeShort:
			count /= 2
		case typeLong:
			count /= 4
		}
		le.PutUint32(buf[e+4:], uint32(count))
		if len(t.val) <= 4 {
			copy(buf[e+8:], t.val)
			continue
		}
		le.PutUint32(buf[e+8:], uint32(data))
		copy(buf[data:], t.val)
		data += len(t.val) + len(t.val)%2
	}
}

// buildTIFF lays out a little-endian TIFF block with IFD0 and, when sub is
// non-empty, an Exif sub-IFD.
func buildTIFF(ifd0, sub []testTag) []byte {
	tags := append([]testTag(nil), ifd0...)
	if len(sub) > 0 {
		tags = append(tags, testTag{tagExifIFD, typeLong, make([]byte, 4)})
	}
	subOff := 8 + ifdSize(tags)
	if len(sub) > 0 {
		binary.LittleEndian.PutUint32(tags[len(tags)-1].val, uint32(subOff))
	}
	buf := make([]byte, subOff+ifdSize(sub))
	copy(buf, "II*\x00")
	binary.LittleEndian.PutUint32(buf[4:], 8)
	writeIFD(buf, 8, tags)
	if len(sub) > 0 {
		writeIFD(buf, subOff, sub)
	}
	return buf
}

func pngChunk(typ string, body []byte) []byte {
	var b []byte
	b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
	b = append(b, typ...)
	b = append(b, body...)
	return binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(append([]byte(typ), body...)))
}

func TestExtract_DescriptionPrecedence(t *testing.T) {
	raw := buildTIFF(
		[]testTag{asciiTag(tagImageDescription, "from 270")},
		[]testTag{{tagUserComment, typeUndefined, []byte("ASCII\x00\x00\x00from 37510")}},
	)
	md := Extract(NewSource("jpeg", raw, nil))
	require.NoError(t, md.Err)
	assert.Equal(t, "from 270", md.Description)
	assert.Empty(t, md.Title)
}

func TestExtract_UserCommentWhenNoDescription(t *testing.T) {
	raw := buildTIFF(nil, []testTag{{tagUserComment, typeUndefined, []byte("ASCII\x00\x00\x00  a comment ")}})
	md := Extract(NewSource("jpeg", raw, nil))
	assert.Equal(t, "a comment", md.Description)
}

func TestExtract_WindowsTitleWins(t *testing.T) {
	raw := buildTIFF([]testTag{
		wideTag(tagWindowsTitle, "Primary"),
		wideTag(tagXPTitle, "Secondary"),
		wideTag(tagXPComment, "Wide comment"),
	}, nil)
	md := Extract(NewSource("jpeg", raw, nil))
	assert.Equal(t, "Primary", md.Title)
	assert.Equal(t, "Wide comment", md.Description)
}

func TestExtract_XPTitleFallback(t *testing.T) {
	raw := buildTIFF([]testTag{wideTag(tagXPTitle, "Только заголовок")}, nil)
	md := Extract(NewSource("jpeg", raw, nil))
	assert.Equal(t, "Только заголовок", md.Title)
}

func TestExtract_TextFallback(t *testing.T) {
	tests := []struct {
		name      string
		text      map[string]string
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "description and title",
			text:      map[string]string{"Description": " desc ", "Title": "title"},
			wantTitle: "title",
			wantDesc:  "desc",
		},
		{
			name:      "comment and subject",
			text:      map[string]string{"comment": "c", "Subject": "s"},
			wantTitle: "s",
			wantDesc:  "c",
		},
		{
			name:     "description beats comment",
			text:     map[string]string{"comment": "c", "Description": "d"},
			wantDesc: "d",
		},
		{
			name: "nothing",
			text: map[string]string{"Author": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := Extract(NewSource("png", nil, tt.text))
			assert.Equal(t, tt.wantTitle, md.Title)
			assert.Equal(t, tt.wantDesc, md.Description)
			assert.NoError(t, md.Err)
		})
	}
}

func TestExtract_EXIFBeatsText(t *testing.T) {
	raw := buildTIFF([]testTag{asciiTag(tagImageDescription, "exif")}, nil)
	md := Extract(NewSource("png", raw, map[string]string{"Description": "text", "Title": "text title"}))
	assert.Equal(t, "exif", md.Description)
	assert.Equal(t, "text title", md.Title)
}

func TestExtract_MalformedEXIF(t *testing.T) {
	md := Extract(NewSource("jpeg", []byte("II*\x00\xff\xff\xff\xff"), map[string]string{"Title": "kept"}))
	assert.Error(t, md.Err)
	assert.Equal(t, "kept", md.Title)
	assert.Empty(t, md.Description)
}

func TestExtract_NilSource(t *testing.T) {
	md := Extract(nil)
	assert.Empty(t, md.Title)
	assert.Empty(t, md.Description)
	assert.NoError(t, md.Err)
}

func TestOrientation(t *testing.T) {
	raw := buildTIFF([]testTag{{tagOrient, typeShort, []byte{6, 0}}}, nil)
	assert.Equal(t, 6, NewSource("jpeg", raw, nil).Orientation())
	assert.Equal(t, 1, NewSource("jpeg", nil, nil).Orientation())
}

func TestScan_PNGChunks(t *testing.T) {
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write([]byte("compressed description"))
	require.NoError(t, zw.Close())

	var data []byte
	data = append(data, pngSignature...)
	data = append(data, pngChunk("IHDR", make([]byte, 13))...)
	data = append(data, pngChunk("tEXt", []byte("Title\x00Caf\xe9"))...)
	data = append(data, pngChunk("zTXt", append([]byte("Description\x00\x00"), z.Bytes()...))...)
	data = append(data, pngChunk("iTXt", []byte("Subject\x00\x00\x00en\x00\x00ünïcode"))...)
	data = append(data, pngChunk("eXIf", buildTIFF([]testTag{asciiTag(tagImageDescription, "png exif")}, nil))...)
	data = append(data, pngChunk("IEND", nil)...)

	src := Scan(data, "png")
	require.NoError(t, src.Err())
	assert.True(t, src.HasEXIF())
	assert.Equal(t, "Café", src.Text["Title"])
	assert.Equal(t, "compressed description", src.Text["Description"])
	assert.Equal(t, "ünïcode", src.Text["Subject"])

	md := Extract(src)
	assert.Equal(t, "Café", md.Title)
	assert.Equal(t, "png exif", md.Description)
}

func TestScan_JPEGSegments(t *testing.T) {
	segment := func(marker byte, payload []byte) []byte {
		b := []byte{0xFF, marker}
		b = binary.BigEndian.AppendUint16(b, uint16(len(payload)+2))
		return append(b, payload...)
	}

	var data []byte
	data = append(data, 0xFF, 0xD8)
	data = append(data, segment(0xE1, append([]byte("Exif\x00\x00"), buildTIFF([]testTag{asciiTag(tagImageDescription, "jpeg exif")}, nil)...))...)
	data = append(data, segment(0xE2, []byte("MPF\x00II*\x00"))...)
	data = append(data, segment(0xFE, []byte("a jpeg comment"))...)
	data = append(data, 0xFF, 0xD9)

	src := Scan(data, "jpeg")
	require.NoError(t, src.Err())
	assert.True(t, src.MultiPicture)
	assert.Equal(t, "a jpeg comment", src.Text["comment"])
	assert.Equal(t, "jpeg exif", Extract(src).Description)
}

func TestScan_TruncatedPNG(t *testing.T) {
	data := append([]byte(nil), pngSignature...)
	data = append(data, 0, 0, 1, 0, 't', 'E', 'X', 't', 'x')
	md := Extract(Scan(data, "png"))
	assert.Error(t, md.Err)
}

func TestExtract_FailureClearsDescription(t *testing.T) {
	var data []byte
	data = append(data, pngSignature...)
	data = append(data, pngChunk("IHDR", make([]byte, 13))...)
	data = append(data, pngChunk("tEXt", []byte("Description\x00hello"))...)
	data = append(data, pngChunk("tEXt", []byte("Title\x00kept"))...)
	data = append(data, pngChunk("zTXt", []byte("Comment\x00\x00not zlib"))...)
	data = append(data, pngChunk("IEND", nil)...)

	src := Scan(data, "png")
	require.Error(t, src.Err())
	assert.Equal(t, "hello", src.Text["Description"])

	md := Extract(src)
	assert.Error(t, md.Err)
	assert.Empty(t, md.Description)
	assert.Equal(t, "kept", md.Title)
	assert.Contains(t, md.Diagnostic(), "Metadata error: png: zTXt")
}
