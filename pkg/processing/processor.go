package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-loader/pkg/metadata"
	"github.com/menta2k/image-loader/pkg/tensor"
	"github.com/menta2k/image-loader/pkg/types"
)

// Frame is one decoded still of an image file.
type Frame struct {
	Image    image.Image
	HasAlpha bool
}

// Decoded is an image file split into its frames plus the metadata
// containers found next to the pixel data.
type Decoded struct {
	Format string
	Frames []Frame
	Meta   *metadata.Source
}

// Processor decodes image files and normalizes them into tensors
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new image processor
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// LoadImage decodes the file at path and returns its normalized tensors,
// filename and metadata. Open and decode errors are returned as is.
func (p *Processor) LoadImage(path string, needMask bool) (*types.ImageResult, error) {
	d, err := p.Decode(path)
	if err != nil {
		return nil, err
	}

	md := metadata.Extract(d.Meta)
	if md.Err != nil {
		p.logger.Warn("metadata extraction failed", "path", path, "error", md.Err)
	}

	img, mask, preview, err := p.Normalize(d, needMask)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &types.ImageResult{
		Image:       img,
		Mask:        mask,
		Preview:     preview,
		Filename:    BaseName(path),
		Title:       md.Title,
		Description: md.Description,
		Diagnostic:  md.Diagnostic(),
		Format:      d.Format,
	}, nil
}

// Decode reads and decodes an image file with all of its frames.
func (p *Processor) Decode(path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	d, err := p.DecodeBytes(data)
	if err != nil && strings.EqualFold(filepath.Ext(path), ".webp") {
		// Fallback: explicit WebP decode
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return &Decoded{
				Format: "webp",
				Frames: []Frame{{Image: img, HasAlpha: hasAlpha(img)}},
				Meta:   metadata.Scan(data, "webp"),
			}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return d, nil
}

// DecodeBytes decodes an in-memory image file.
func (p *Processor) DecodeBytes(data []byte) (*Decoded, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	meta := metadata.Scan(data, format)
	if format == "jpeg" && meta.MultiPicture {
		format = "mpo"
	}
	d := &Decoded{Format: format, Meta: meta}

	switch {
	case format == "gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		d.Frames = compositeGIF(g)
		return d, nil
	case format == "png" && meta.AnimationFrames > 0:
		frames, err := decodeAPNG(data)
		if err == nil {
			d.Frames = frames
			return d, nil
		}
		p.logger.Warn("apng decode failed, using the default image", "error", err)
	case format == "tiff":
		frames, err := decodeTIFFPages(data)
		if err == nil {
			d.Frames = frames
			return d, nil
		}
		p.logger.Debug("multi-page tiff decode failed, reading the first page", "error", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	d.Frames = []Frame{{Image: img, HasAlpha: hasAlpha(img)}}
	return d, nil
}

// Normalize turns the frames of d into an image tensor [n,h,w,3] and, when
// needMask is set, a mask tensor [n,h,w] holding 1-alpha. Frames whose size
// differs from the first frame are skipped. preview is the first frame after
// orientation.
func (p *Processor) Normalize(d *Decoded, needMask bool) (img, mask *tensor.Tensor, preview image.Image, err error) {
	if len(d.Frames) == 0 {
		return nil, nil, nil, types.ErrEmptyImage
	}

	orientation := 1
	if d.Meta != nil {
		orientation = d.Meta.Orientation()
	}

	var images, masks []*tensor.Tensor
	var base image.Point
	for i, f := range d.Frames {
		quirk := PixelQuirkFor(f.Image)
		frame := Orient(quirk.Apply(f.Image), orientation)

		size := frame.Bounds().Size()
		if len(images) == 0 {
			base = size
			preview = frame
		} else if size != base {
			p.logger.Debug("dropping frame with mismatched size",
				"frame", i, "size", size, "want", base)
			continue
		}

		images = append(images, rgbTensor(frame))
		if needMask {
			masks = append(masks, maskTensor(frame, f.HasAlpha))
		}
	}

	if len(images) > 1 && FormatQuirkFor(d.Format) != FormatStillsContainer {
		if img, err = tensor.Concat(images...); err != nil {
			return nil, nil, nil, err
		}
		if needMask {
			if mask, err = tensor.Concat(masks...); err != nil {
				return nil, nil, nil, err
			}
		}
		return img, mask, preview, nil
	}

	img = images[0]
	if needMask {
		mask = masks[0]
	}
	return img, mask, preview, nil
}

// Orient applies an EXIF orientation (1..8) and returns an NRGBA copy.
func Orient(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

func rgbTensor(img *image.NRGBA) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(1, h, w, 3)
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			t.Data[i+0] = float32(px[0]) / 255
			t.Data[i+1] = float32(px[1]) / 255
			t.Data[i+2] = float32(px[2]) / 255
			i += 3
		}
	}
	return t
}

func maskTensor(img *image.NRGBA, alpha bool) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(1, h, w)
	if !alpha {
		return t
	}
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := img.Pix[y*img.Stride+x*4+3]
			t.Data[i] = 1 - float32(a)/255
			i++
		}
	}
	return t
}

// hasAlpha reports whether the decoded color model carries transparency.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64, *image.Alpha, *image.Alpha16:
		return true
	case *image.Paletted:
		return paletteHasAlpha(m.Palette)
	default:
		return false
	}
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// compositeGIF replays a GIF animation onto a full-size canvas so that each
// frame is a complete picture.
func compositeGIF(g *gif.GIF) []Frame {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	for _, f := range g.Image {
		bounds = bounds.Union(f.Bounds())
	}

	alpha := false
	for _, f := range g.Image {
		if paletteHasAlpha(f.Palette) {
			alpha = true
			break
		}
	}

	canvas := image.NewNRGBA(bounds)
	frames := make([]Frame, 0, len(g.Image))
	for i, f := range g.Image {
		var saved *image.NRGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			saved = imaging.Clone(canvas)
		}

		draw.Draw(canvas, f.Bounds(), f, f.Bounds().Min, draw.Over)
		frames = append(frames, Frame{Image: imaging.Clone(canvas), HasAlpha: alpha})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, f.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return frames
}

// BaseName returns the file name of path without directory and extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
