// Package imageloader loads images into normalized tensors for an image
// pipeline.
//
// Two entry points are offered. LoadOne loads a single named image together
// with its alpha mask. LoadNext serves the images of a directory one per
// call in name order and remembers its position in a small JSON store, so
// that repeated runs walk the whole directory.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		imageloader "github.com/menta2k/image-loader"
//	)
//
//	func main() {
//		il := imageloader.New("database.json")
//
//		res, err := il.LoadNext(context.Background(), "./photos")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(res.Filename, res.Image.Shape, res.Description)
//	}
//
// The package is a thin layer over its components:
//
//  1. Processing (pkg/processing): decoding, orientation and tensor conversion
//  2. Metadata (pkg/metadata): titles and descriptions from EXIF and text chunks
//  3. Loader (pkg/loader): name resolution and single image loading
//  4. Cycler (pkg/cycler): directory round-robin with a persisted cursor
//  5. Store (pkg/store): the JSON key/value file holding cursors
//
// Images that carry no description can be captioned by a vision model served
// by Ollama or llama.cpp, see NewCaptioner.
package imageloader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/image-loader/pkg/caption"
	"github.com/menta2k/image-loader/pkg/client"
	"github.com/menta2k/image-loader/pkg/cycler"
	"github.com/menta2k/image-loader/pkg/llamacpp"
	"github.com/menta2k/image-loader/pkg/loader"
	"github.com/menta2k/image-loader/pkg/ollama"
	"github.com/menta2k/image-loader/pkg/processing"
	"github.com/menta2k/image-loader/pkg/store"
	"github.com/menta2k/image-loader/pkg/types"
)

// Version of the image loader library
const Version = "1.0.0"

// Options configures an ImageLoader
type Options struct {
	// StorePath is the JSON file holding directory cursors.
	StorePath string
	// Resolver maps names given to LoadOne to files. Defaults to names
	// relative to the working directory.
	Resolver loader.Resolver
	Cycler   cycler.Config
	// Captioner, when set, describes images that carry no description.
	Captioner loader.Captioner
	Logger    *slog.Logger
}

// ImageLoader provides a high-level interface to single and directory loading
type ImageLoader struct {
	store  *store.Store
	loader *loader.Loader
	cycler *cycler.Cycler
}

// New creates an ImageLoader with default configuration
func New(storePath string) *ImageLoader {
	return NewWithOptions(Options{StorePath: storePath})
}

// NewWithOptions creates an ImageLoader with custom configuration
func NewWithOptions(opts Options) *ImageLoader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := store.New(opts.StorePath, logger.With("component", "store"))
	l := loader.New(opts.Resolver, processing.NewProcessor(logger.With("component", "processing")), logger.With("component", "loader"))
	if opts.Captioner != nil {
		l.WithCaptioner(opts.Captioner)
	}

	return &ImageLoader{
		store:  s,
		loader: l,
		cycler: cycler.NewWithConfig(s, l, opts.Cycler, logger.With("component", "cycler")),
	}
}

// LoadOne loads a single image by name, with its alpha mask
func (il *ImageLoader) LoadOne(ctx context.Context, name string) (*types.ImageResult, error) {
	return il.loader.LoadOne(ctx, name)
}

// LoadNext loads the next image of dir and advances its cursor
func (il *ImageLoader) LoadNext(ctx context.Context, dir string) (*types.BatchResult, error) {
	return il.cycler.LoadNext(ctx, dir)
}

// FileDigest returns the SHA-256 of the named image file
func (il *ImageLoader) FileDigest(name string) (string, error) {
	return il.loader.FileDigest(name)
}

// DirDigest identifies the next image LoadNext will serve for dir
func (il *ImageLoader) DirDigest(dir string) string {
	return il.cycler.Digest(dir)
}

// Validate checks that name refers to an image file
func (il *ImageLoader) Validate(name string) error {
	return il.loader.Validate(name)
}

// ValidateDir checks that dir is a directory
func (il *ImageLoader) ValidateDir(dir string) error {
	return il.cycler.Validate(dir)
}

// Store returns the cursor store
func (il *ImageLoader) Store() *store.Store {
	return il.store
}

// NewCaptioner creates a captioner talking to backend ("ollama" or
// "llamacpp") at url.
func NewCaptioner(backend, url string, cfg caption.Config) (*caption.Captioner, error) {
	var vc client.VisionClient
	var err error

	switch backend {
	case "ollama":
		if url == "" {
			url = "http://localhost:11434"
		}
		vc, err = ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case "llamacpp":
		if url == "" {
			url = "http://localhost:8080"
		}
		vc, err = llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}

	return caption.New(vc, cfg), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
