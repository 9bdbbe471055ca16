package processing

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/kettek/apng"
	"golang.org/x/image/draw"
)

// fcTL dispose and blend operations.
const (
	apngDisposeBackground = 1
	apngDisposePrevious   = 2
	apngBlendSource       = 0
)

// decodeAPNG replays an animated PNG onto its canvas and returns one full
// picture per animation frame. A default image that is not part of the
// animation is skipped.
func decodeAPNG(data []byte) ([]Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	a, err := apng.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	alpha := false
	for _, f := range a.Frames {
		if f.Image != nil && hasAlpha(f.Image) {
			alpha = true
			break
		}
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	frames := make([]Frame, 0, len(a.Frames))
	for _, f := range a.Frames {
		if f.IsDefault || f.Image == nil {
			continue
		}
		src := f.Image.Bounds()
		r := src.Sub(src.Min).Add(image.Pt(f.XOffset, f.YOffset))

		var saved *image.NRGBA
		if f.DisposeOp == apngDisposePrevious {
			saved = imaging.Clone(canvas)
		}

		op := draw.Over
		if f.BlendOp == apngBlendSource {
			op = draw.Src
		}
		draw.Draw(canvas, r, f.Image, src.Min, op)
		frames = append(frames, Frame{Image: imaging.Clone(canvas), HasAlpha: alpha})

		switch f.DisposeOp {
		case apngDisposeBackground:
			draw.Draw(canvas, r, image.Transparent, image.Point{}, draw.Src)
		case apngDisposePrevious:
			canvas = saved
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("apng: no animation frames")
	}
	return frames, nil
}

// decodeTIFFPages returns one frame per TIFF page. Pages that fail to
// decode are skipped.
func decodeTIFFPages(data []byte) ([]Frame, error) {
	pages, errs, err := tiff.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var frames []Frame
	for i, page := range pages {
		if len(page) == 0 || page[0] == nil {
			continue
		}
		if i < len(errs) && len(errs[i]) > 0 && errs[i][0] != nil {
			continue
		}
		frames = append(frames, Frame{Image: page[0], HasAlpha: hasAlpha(page[0])})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("tiff: no decodable pages")
	}
	return frames, nil
}
