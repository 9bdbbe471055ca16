package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, "jpg", GetFileExtension("a/B.JPG"))
	assert.Equal(t, "", GetFileExtension("noext"))
}

func TestIsImageFile(t *testing.T) {
	exts := []string{"png", ".jpg", "JPEG"}
	assert.True(t, IsImageFile("x.PNG", exts))
	assert.True(t, IsImageFile("x.jpg", exts))
	assert.True(t, IsImageFile("x.jpeg", exts))
	assert.False(t, IsImageFile("x.gif", exts))
	assert.False(t, IsImageFile("png", exts))
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.png"), "")
	touch(t, filepath.Join(dir, "A.JPG"), "")
	touch(t, filepath.Join(dir, "c.jpeg"), "")
	touch(t, filepath.Join(dir, "notes.txt"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	files, err := ListImageFiles(dir, []string{"png", "jpg", "jpeg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.JPG", "b.png", "c.jpeg"}, files)

	_, err = ListImageFiles(filepath.Join(dir, "missing"), []string{"png"})
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	touch(t, file, "x")

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
}

func TestFileDigest(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	touch(t, file, "abc")

	sum, err := FileDigest(file)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = FileDigest(file + ".missing")
	assert.Error(t, err)
}
