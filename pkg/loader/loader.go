// Package loader loads single images by name. Names are resolved against the
// configured directories, decoded by the processing package and, when the
// file carries no description, optionally captioned by a vision model.
package loader

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/image-loader/internal/utils"
	"github.com/menta2k/image-loader/pkg/processing"
	"github.com/menta2k/image-loader/pkg/types"
)

// Captioner describes an image in one sentence.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// Loader loads one image at a time
type Loader struct {
	resolver  Resolver
	processor *processing.Processor
	captioner Captioner
	logger    *slog.Logger
}

// New creates a Loader. A nil processor or logger is replaced by a default.
func New(resolver Resolver, processor *processing.Processor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if processor == nil {
		processor = processing.NewProcessor(logger)
	}
	if resolver == nil {
		resolver = DirResolver{}
	}
	return &Loader{resolver: resolver, processor: processor, logger: logger}
}

// WithCaptioner enables captioning of images without a description.
func (l *Loader) WithCaptioner(c Captioner) *Loader {
	l.captioner = c
	return l
}

// LoadOne resolves name and loads it with its alpha mask.
func (l *Loader) LoadOne(ctx context.Context, name string) (*types.ImageResult, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(ctx, path, true)
}

// LoadFile loads the image at path. The mask is only built when needMask is
// set.
func (l *Loader) LoadFile(ctx context.Context, path string, needMask bool) (*types.ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := l.processor.LoadImage(path, needMask)
	if err != nil {
		return nil, err
	}

	if res.Description == "" && l.captioner != nil {
		text, err := l.captioner.Caption(ctx, res.Preview)
		if err != nil {
			l.logger.Warn("caption failed", "path", path, "error", err)
		} else {
			l.logger.Debug("captioned image", "path", path, "caption", text)
			res.Description = text
		}
	}
	return res, nil
}

// FileDigest returns the hex SHA-256 of the file behind name.
func (l *Loader) FileDigest(name string) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	return utils.FileDigest(path)
}

// Validate reports types.ErrInvalidFile when name does not resolve to a file.
func (l *Loader) Validate(name string) error {
	_, err := l.resolve(name)
	return err
}

func (l *Loader) resolve(name string) (string, error) {
	path, err := l.resolver.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrInvalidFile, name, err)
	}
	if !utils.FileExists(path) {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidFile, name)
	}
	return path, nil
}
