package repack

import (
	"fmt"
	"os"
)

// scratchPrefix names scratch directories; MkdirTemp appends a random suffix
// so concurrent runs in one working directory never collide.
const scratchPrefix = "__extract_epub_tmp-"

func newScratchDir(parent string) (string, error) {
	dir, err := os.MkdirTemp(parent, scratchPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory in %s: %w", parent, err)
	}
	return dir, nil
}
