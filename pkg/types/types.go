package types

import (
	"errors"
	"image"

	"github.com/menta2k/image-loader/pkg/tensor"
)

// Validation errors. They are always wrapped with the offending path.
var (
	ErrInvalidFile       = errors.New("invalid image file")
	ErrDirNotExist       = errors.New("directory does not exist")
	ErrNotDirectory      = errors.New("not a directory")
	ErrNoSupportedImages = errors.New("no supported images found")
	ErrEmptyImage        = errors.New("image has no decodable frames")
)

// Metadata is the best-effort title/description read from an image.
// Err is set when extraction failed part way; Description is then empty and
// Title holds whatever was recovered before the failure.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Err         error  `json:"-"`
}

// Diagnostic returns the extraction failure as text, or "".
func (m Metadata) Diagnostic() string {
	if m.Err == nil {
		return ""
	}
	return "Metadata error: " + m.Err.Error()
}

// ImageResult is the bundle handed to the pipeline for one image file.
type ImageResult struct {
	// Image has shape [frames, height, width, 3] with values in [0,1].
	Image *tensor.Tensor `json:"-"`
	// Mask has shape [frames, height, width]; nil when no mask was requested.
	Mask *tensor.Tensor `json:"-"`
	// Preview is the first frame after orientation, kept for callers that
	// need a displayable image.
	Preview     image.Image `json:"-"`
	Filename    string      `json:"filename"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Diagnostic  string      `json:"diagnostic,omitempty"`
	Format      string      `json:"format"`
}

// BatchResult is returned by directory cycling.
type BatchResult struct {
	ImageResult
	Directory string `json:"directory"`
	Index     int    `json:"index"`
	Count     int    `json:"count"`
}
