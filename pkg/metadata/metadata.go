// Package metadata reads human-authored titles and descriptions from image
// files. EXIF tags are consulted first, in a fixed order, then PNG text
// chunks (and JPEG comments) fill whatever is still empty.
package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/menta2k/image-loader/pkg/types"
)

type role int

const (
	roleTitle role = iota
	roleDescription
)

// EXIF tag ids.
const (
	tagWindowsTitle     = 40090
	tagImageDescription = 270
	tagUserComment      = 37510
	tagXPTitle          = 40091
	tagXPComment        = 40092
)

// tagOrder is scanned front to back and the first non-empty value wins for
// each role. Order matters: 270 beats 37510 beats 40092 for the description.
var tagOrder = []struct {
	id   uint16
	role role
}{
	{tagImageDescription, roleDescription},
	{tagUserComment, roleDescription},
	{tagXPTitle, roleTitle},
	{tagXPComment, roleDescription},
}

// Tags that live in the Exif sub-IFD rather than IFD0.
var subIFDFields = map[uint16]exif.FieldName{
	tagUserComment: exif.UserComment,
}

var (
	descriptionFields = []string{"Description", "comment"}
	titleFields       = []string{"Title", "Subject"}
)

// Extract returns the title and description recorded in src. It never
// fails: a scanning or decoding problem is returned in Metadata.Err, the
// description is then left empty and only a recovered title is kept.
func Extract(src *Source) (md types.Metadata) {
	if src == nil {
		return md
	}
	defer func() {
		if r := recover(); r != nil {
			md.Err = fmt.Errorf("%v", r)
		}
		md.Title = strings.TrimSpace(md.Title)
		md.Description = strings.TrimSpace(md.Description)
		if md.Err != nil {
			md.Description = ""
		}
	}()

	md.Err = src.Err()

	if src.exif != nil {
		var order binary.ByteOrder = binary.LittleEndian
		if src.exif.Tiff != nil && src.exif.Tiff.Order != nil {
			order = src.exif.Tiff.Order
		}
		if tag := lookupTag(src.exif, tagWindowsTitle); tag != nil {
			md.Title = tagText(tag, order)
		}
		for _, entry := range tagOrder {
			tag := lookupTag(src.exif, entry.id)
			if tag == nil {
				continue
			}
			v := tagText(tag, order)
			if v == "" {
				continue
			}
			switch entry.role {
			case roleDescription:
				if md.Description == "" {
					md.Description = v
				}
			case roleTitle:
				if md.Title == "" {
					md.Title = v
				}
			}
		}
	}

	if md.Description == "" {
		md.Description = firstText(src.Text, descriptionFields)
	}
	if md.Title == "" {
		md.Title = firstText(src.Text, titleFields)
	}
	return md
}

func firstText(text map[string]string, fields []string) string {
	for _, f := range fields {
		if v, ok := text[f]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func lookupTag(x *exif.Exif, id uint16) *tiff.Tag {
	if x.Tiff != nil && len(x.Tiff.Dirs) > 0 {
		for _, tag := range x.Tiff.Dirs[0].Tags {
			if tag.Id == id {
				return tag
			}
		}
	}
	if name, ok := subIFDFields[id]; ok {
		if tag, err := x.Get(name); err == nil {
			return tag
		}
	}
	return nil
}

// tagText renders a tag value. Byte-typed values go through DecodeBytes,
// ASCII is cut at its terminator, anything else is printed.
func tagText(tag *tiff.Tag, order binary.ByteOrder) string {
	switch tag.Type {
	case tiff.DTByte, tiff.DTSByte, tiff.DTUndefined:
		if tag.Id == tagUserComment {
			return decodeUserComment(tag.Val, order)
		}
		return DecodeBytes(tag.Val)
	case tiff.DTAscii:
		val := tag.Val
		if i := bytes.IndexByte(val, 0); i >= 0 {
			val = val[:i]
		}
		return DecodeBytes(val)
	default:
		return DecodeString(tag.String())
	}
}
