package epub

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir reads files from an unpacked EPUB tree. Names are slash-separated and
// must stay under the root.
type Dir string

// ReadFile reads name relative to the tree root.
func (d Dir) ReadFile(name string) ([]byte, error) {
	local := filepath.FromSlash(normalizePath(name))
	if !filepath.IsLocal(local) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(string(d), local))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, err
}
