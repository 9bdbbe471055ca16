package caption

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply  string
	err    error
	model  string
	prompt string
	img    string
}

func (f *fakeClient) SimpleQuery(_ context.Context, model, prompt, imgB64 string) (string, error) {
	f.model, f.prompt, f.img = model, prompt, imgB64
	return f.reply, f.err
}

func TestCaption(t *testing.T) {
	fc := &fakeClient{reply: "  \"A dog running on a beach.\"\n"}
	c := New(fc, Config{Model: "moondream"})

	text, err := c.Caption(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, "A dog running on a beach.", text)
	assert.Equal(t, "moondream", fc.model)
	assert.Equal(t, DefaultPrompt, fc.prompt)
	assert.NotEmpty(t, fc.img)
}

func TestCaption_Errors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	_, err := New(&fakeClient{err: errors.New("offline")}, Config{}).Caption(context.Background(), img)
	assert.ErrorContains(t, err, "offline")

	_, err = New(&fakeClient{reply: "  ``` ```"}, Config{}).Caption(context.Background(), img)
	assert.Error(t, err)

	_, err = New(&fakeClient{reply: "x"}, Config{}).Caption(context.Background(), nil)
	assert.Error(t, err)
}

func TestNormalizeCaption(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "A cat.", 0, "A cat."},
		{"fenced", "```text\nA cat\non a mat.\n```", 0, "A cat on a mat."},
		{"preamble", "Sure! Here is a short description of the image: A red barn.", 0, "A red barn."},
		{"quotes", "“A bridge at night.”", 0, "A bridge at night."},
		{"truncated", "abcdefgh", 4, "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCaption(tt.in, tt.max))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(&fakeClient{}, Config{})
	def := DefaultConfig()
	assert.Equal(t, def.Model, c.config.Model)
	assert.Equal(t, def.SendQuality, c.config.SendQuality)
	assert.Equal(t, 0, c.config.SendSize, "zero send size keeps the original resolution")
}
