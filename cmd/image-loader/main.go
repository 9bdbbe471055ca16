package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	imageloader "github.com/menta2k/image-loader"
	"github.com/menta2k/image-loader/internal/config"
	"github.com/menta2k/image-loader/pkg/caption"
	"github.com/menta2k/image-loader/pkg/cycler"
	"github.com/menta2k/image-loader/pkg/loader"
	"github.com/menta2k/image-loader/pkg/types"
)

// summary is what the tool prints for a loaded image
type summary struct {
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Diagnostic  string `json:"diagnostic,omitempty"`
	ImageShape  []int  `json:"image_shape,omitempty"`
	MaskShape   []int  `json:"mask_shape,omitempty"`
	Directory   string `json:"directory,omitempty"`
	Index       *int   `json:"index,omitempty"`
	Count       int    `json:"count,omitempty"`
	Digest      string `json:"digest,omitempty"`
}

func usage(fs *pflag.FlagSet) {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s [flags] one <name>\n", prog)
	fmt.Fprintf(os.Stderr, "       %s [flags] next <dir>\n", prog)
	fmt.Fprintf(os.Stderr, "       %s [flags] digest <name|dir>\n\n", prog)
	fs.PrintDefaults()
}

func main() {
	fs := pflag.NewFlagSet("image-loader", pflag.ExitOnError)
	configPath := fs.String("config", "", "configuration file (json or yaml)")
	config.RegisterFlags(fs)
	fs.Usage = func() { usage(fs) }
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) != 2 {
		usage(fs)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	level, _ := cfg.Log.SlogLevel()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := imageloader.Options{
		StorePath: cfg.Store.Path,
		Resolver: loader.DirResolver{
			Input:  cfg.Input.Dir,
			Output: cfg.Input.OutputDir,
			Temp:   cfg.Input.TempDir,
		},
		Cycler: cycler.Config{
			Extensions:   cfg.Cycler.Extensions,
			SharedCursor: cfg.Cycler.SharedCursor,
		},
		Logger: logger,
	}

	if cfg.Caption.Enabled {
		c, err := imageloader.NewCaptioner(cfg.Caption.Backend, cfg.Caption.URL, caption.Config{
			Model:       cfg.Caption.Model,
			Prompt:      cfg.Caption.Prompt,
			SendSize:    cfg.Caption.SendSize,
			SendQuality: cfg.Caption.SendQuality,
		})
		if err != nil {
			logger.Error("captioning disabled", "error", err)
		} else {
			opts.Captioner = c
		}
	}

	il := imageloader.NewWithOptions(opts)

	out, err := run(ctx, il, args[0], args[1])
	if err != nil {
		logger.Error("command failed", "command", args[0], "arg", args[1], "error", err)
		os.Exit(1)
	}

	js, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(js))
}

func run(ctx context.Context, il *imageloader.ImageLoader, cmd, arg string) (*summary, error) {
	switch cmd {
	case "one":
		res, err := il.LoadOne(ctx, arg)
		if err != nil {
			return nil, err
		}
		s := summarize(res)
		s.Digest, _ = il.FileDigest(arg)
		return s, nil

	case "next":
		res, err := il.LoadNext(ctx, arg)
		if err != nil {
			return nil, err
		}
		s := summarize(&res.ImageResult)
		s.Directory = res.Directory
		s.Index = &res.Index
		s.Count = res.Count
		s.Digest = il.DirDigest(arg)
		return s, nil

	case "digest":
		if err := il.ValidateDir(arg); err == nil {
			return &summary{Directory: arg, Digest: il.DirDigest(arg)}, nil
		}
		if err := il.Validate(arg); err != nil {
			return nil, err
		}
		d, err := il.FileDigest(arg)
		if err != nil {
			return nil, err
		}
		return &summary{Filename: arg, Digest: d}, nil

	default:
		return nil, fmt.Errorf("unknown command %q (use one, next or digest)", cmd)
	}
}

func summarize(res *types.ImageResult) *summary {
	s := &summary{
		Filename:    res.Filename,
		Format:      res.Format,
		Title:       res.Title,
		Description: res.Description,
		Diagnostic:  res.Diagnostic,
	}
	if res.Image != nil {
		s.ImageShape = res.Image.Shape
	}
	if res.Mask != nil {
		s.MaskShape = res.Mask.Shape
	}
	return s
}
