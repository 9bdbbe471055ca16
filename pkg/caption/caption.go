// Package caption asks a vision model for a one-sentence description of an
// image. It is used to fill the description of images that carry no
// metadata of their own.
package caption

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/image-loader/pkg/client"
	"github.com/menta2k/image-loader/pkg/processing"
)

// DefaultPrompt is the default caption prompt
const DefaultPrompt = `Describe this image in one short, neutral sentence (at most 25 words).
Do not guess real identities. Reply with the sentence only: no markdown, no quotes, no preamble.`

// Config controls how images are sent to the model
type Config struct {
	Model       string
	Prompt      string
	SendFormat  string
	SendSize    int
	SendQuality int
	MaxLength   int
}

// DefaultConfig returns the caption defaults
func DefaultConfig() Config {
	return Config{
		Model:       "llava",
		Prompt:      DefaultPrompt,
		SendFormat:  "jpg",
		SendSize:    768,
		SendQuality: 85,
		MaxLength:   300,
	}
}

// Captioner describes images using a vision client
type Captioner struct {
	client client.VisionClient
	config Config
}

// New creates a captioner. Zero fields of config take their defaults.
func New(c client.VisionClient, config Config) *Captioner {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Prompt == "" {
		config.Prompt = def.Prompt
	}
	if config.SendFormat == "" {
		config.SendFormat = def.SendFormat
	}
	if config.SendQuality <= 0 {
		config.SendQuality = def.SendQuality
	}
	if config.MaxLength <= 0 {
		config.MaxLength = def.MaxLength
	}
	return &Captioner{client: c, config: config}
}

// Caption returns a cleaned one-line description of img.
func (c *Captioner) Caption(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("caption: no image")
	}
	imgB64, err := processing.PrepareImageForModel(img, c.config.SendFormat, c.config.SendSize, c.config.SendQuality)
	if err != nil {
		return "", fmt.Errorf("caption: prepare image: %w", err)
	}

	raw, err := c.client.SimpleQuery(ctx, c.config.Model, c.config.Prompt, imgB64)
	if err != nil {
		return "", fmt.Errorf("caption: %w", err)
	}

	text := normalizeCaption(raw, c.config.MaxLength)
	if text == "" {
		return "", fmt.Errorf("caption: model returned no text")
	}
	return text, nil
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	rePreamble   = regexp.MustCompile(`(?i)^(sure[,!.]?\s*)?(here is|here's)\s+(a|the)\s+(short\s+)?(description|caption)[^:]*:\s*`)
)

// normalizeCaption strips code fences, quotes and chatty preambles and folds
// the reply onto one line of at most maxLen runes.
func normalizeCaption(raw string, maxLen int) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = reWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	s = rePreamble.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"'`“”*")
	s = strings.TrimSpace(s)

	if r := []rune(s); maxLen > 0 && len(r) > maxLen {
		s = strings.TrimSpace(string(r[:maxLen]))
	}
	return s
}
