package processing

import (
	"image"
)

// FormatQuirk marks container formats whose frame sequence needs special
// treatment when frames are batched.
type FormatQuirk int

const (
	// FormatPlain frames are batched when there is more than one.
	FormatPlain FormatQuirk = iota
	// FormatStillsContainer frames are independent pictures (MPO stereo
	// pairs, previews) and only the first one is returned.
	FormatStillsContainer
)

var formatQuirks = map[string]FormatQuirk{
	"mpo": FormatStillsContainer,
}

// FormatQuirkFor returns the quirk registered for a decoder format name.
func FormatQuirkFor(format string) FormatQuirk {
	return formatQuirks[format]
}

func (q FormatQuirk) String() string {
	switch q {
	case FormatStillsContainer:
		return "stills-container"
	default:
		return "plain"
	}
}

// PixelQuirk marks pixel layouts that must be rewritten before the usual
// 8-bit RGB conversion.
type PixelQuirk int

const (
	// PixelPlain needs no rewrite.
	PixelPlain PixelQuirk = iota
	// PixelWideGray is a 16-bit grayscale buffer. Samples are multiplied by
	// 1/255 and clipped to 8 bits, the way integer-mode images are brought
	// into range by the pipeline's reference loader.
	PixelWideGray
)

// PixelQuirkFor classifies a decoded frame.
func PixelQuirkFor(img image.Image) PixelQuirk {
	switch img.(type) {
	case *image.Gray16:
		return PixelWideGray
	default:
		return PixelPlain
	}
}

func (q PixelQuirk) String() string {
	switch q {
	case PixelWideGray:
		return "wide-gray"
	default:
		return "plain"
	}
}

// Apply rewrites img according to q. PixelPlain returns img unchanged.
func (q PixelQuirk) Apply(img image.Image) image.Image {
	switch q {
	case PixelWideGray:
		src := img.(*image.Gray16)
		b := src.Bounds()
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := src.Gray16At(x, y).Y / 255
				if v > 255 {
					v = 255
				}
				dst.Pix[dst.PixOffset(x, y)] = uint8(v)
			}
		}
		return dst
	default:
		return img
	}
}
