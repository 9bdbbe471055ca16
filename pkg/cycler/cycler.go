// Package cycler serves the images of a directory one per call, in name
// order, remembering the position between calls in a store.
package cycler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/menta2k/image-loader/internal/utils"
	"github.com/menta2k/image-loader/pkg/types"
)

const (
	// CursorCategory is the store category holding cursors.
	CursorCategory = "images"
	// SharedCursorKey is the single cursor used when cursors are not kept
	// per directory.
	SharedCursorKey = "current_index"
)

// DefaultExtensions are the file types picked up from a directory.
var DefaultExtensions = []string{"png", "jpg", "jpeg"}

// CursorStore is the part of store.Store the cycler needs.
type CursorStore interface {
	GetInt(category, key string, def int) int
	Insert(category, key string, value any) error
}

// ImageLoader decodes one file.
type ImageLoader interface {
	LoadFile(ctx context.Context, path string, needMask bool) (*types.ImageResult, error)
}

// Config controls a Cycler.
type Config struct {
	Extensions []string
	// SharedCursor keeps one cursor for every directory instead of one per
	// directory.
	SharedCursor bool
}

// Cycler is a round-robin directory loader.
type Cycler struct {
	store  CursorStore
	loader ImageLoader
	config Config
	logger *slog.Logger
}

// New creates a Cycler with default configuration
func New(store CursorStore, loader ImageLoader, logger *slog.Logger) *Cycler {
	return NewWithConfig(store, loader, Config{Extensions: DefaultExtensions}, logger)
}

// NewWithConfig creates a Cycler with custom configuration
func NewWithConfig(store CursorStore, loader ImageLoader, config Config, logger *slog.Logger) *Cycler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	return &Cycler{store: store, loader: loader, config: config, logger: logger}
}

// CursorKey returns the store key holding the cursor for dir.
func (c *Cycler) CursorKey(dir string) string {
	if c.config.SharedCursor {
		return SharedCursorKey
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return SharedCursorKey + ":" + abs
}

// Cursor returns the stored position for dir without reducing it.
func (c *Cycler) Cursor(dir string) int {
	return c.store.GetInt(CursorCategory, c.CursorKey(dir), 0)
}

// Files lists the supported images in dir in name order. It fails with
// types.ErrDirNotExist when dir is missing and types.ErrNoSupportedImages
// when it holds no matching file.
func (c *Cycler) Files(dir string) ([]string, error) {
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("directory '%s': %w", dir, types.ErrDirNotExist)
	}
	files, err := utils.ListImageFiles(dir, c.config.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, types.ErrNoSupportedImages)
	}
	return files, nil
}

// LoadNext decodes the image under the cursor for dir and advances the
// cursor. The store is not touched when validation or decoding fails. A
// failure to persist the new cursor is logged and the image is still
// returned.
func (c *Cycler) LoadNext(ctx context.Context, dir string) (*types.BatchResult, error) {
	files, err := c.Files(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := c.CursorKey(dir)
	index := mod(c.store.GetInt(CursorCategory, key, 0), len(files))

	res, err := c.loader.LoadFile(ctx, filepath.Join(dir, files[index]), false)
	if err != nil {
		return nil, err
	}

	next := (index + 1) % len(files)
	if err := c.store.Insert(CursorCategory, key, next); err != nil {
		c.logger.Warn("failed to persist cursor", "dir", dir, "error", err)
	}
	c.logger.Debug("served image", "dir", dir, "file", files[index], "index", index, "next", next)

	return &types.BatchResult{
		ImageResult: *res,
		Directory:   dir,
		Index:       index,
		Count:       len(files),
	}, nil
}

// Digest identifies the image the next LoadNext call for dir will serve.
func (c *Cycler) Digest(dir string) string {
	sum := sha256.Sum256([]byte(dir + "_" + strconv.Itoa(c.Cursor(dir))))
	return hex.EncodeToString(sum[:])
}

// Validate checks that dir is a directory.
func (c *Cycler) Validate(dir string) error {
	if !utils.DirExists(dir) {
		return fmt.Errorf("%s: %w", dir, types.ErrNotDirectory)
	}
	return nil
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
