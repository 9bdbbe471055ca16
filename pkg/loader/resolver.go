package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-loader/internal/utils"
)

// Resolver maps a logical image name to a file path.
type Resolver interface {
	Resolve(name string) (string, error)
	Exists(name string) bool
}

// DirResolver resolves names against a set of root directories. A name may
// carry an annotation selecting the root: "cat.png [output]". Names without
// an annotation, or with "[input]", resolve under Input. Absolute names are
// returned unchanged.
type DirResolver struct {
	Input  string
	Output string
	Temp   string
}

// Resolve returns the path for name. Names that would escape their root
// directory are rejected.
func (r DirResolver) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty image name")
	}

	root := r.Input
	for _, a := range []struct {
		suffix string
		dir    string
	}{
		{"[input]", r.Input},
		{"[output]", r.Output},
		{"[temp]", r.Temp},
	} {
		if strings.HasSuffix(name, a.suffix) {
			name = strings.TrimSpace(strings.TrimSuffix(name, a.suffix))
			root = a.dir
			break
		}
	}

	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if root == "" {
		return filepath.Clean(name), nil
	}

	path := filepath.Join(root, name)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("image name %q escapes %s", name, root)
	}
	return path, nil
}

// Exists reports whether name resolves to a regular file.
func (r DirResolver) Exists(name string) bool {
	path, err := r.Resolve(name)
	if err != nil {
		return false
	}
	return utils.FileExists(path)
}
