package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Top-level subtrees packed right after the mimetype entry, in this order.
var leadingRoots = []string{"META-INF", "OEBPS"}

// WriteTree packs the EPUB layout rooted at root into w: the mimetype file
// first, then META-INF and OEBPS depth-first, then any remaining top-level
// entries in lexical order. Entry names are slash-separated paths relative
// to root.
func WriteTree(w *Writer, root string) error {
	mimetypePath := filepath.Join(root, MimetypeName)
	info, err := os.Stat(mimetypePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpen, mimetypePath, err)
	}
	if err := w.AddFile(mimetypePath, MimetypeName, info.Mode()); err != nil {
		return err
	}

	tops, err := topLevelOrder(root)
	if err != nil {
		return err
	}

	for _, top := range tops {
		if err := walkInto(w, root, filepath.Join(root, top)); err != nil {
			return err
		}
	}
	return nil
}

// topLevelOrder lists root's children in packing order, excluding mimetype.
func topLevelOrder(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, root, err)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Name()] = true
	}

	order := make([]string, 0, len(entries))
	for _, name := range leadingRoots {
		if present[name] {
			order = append(order, name)
			delete(present, name)
		}
	}
	// os.ReadDir returns entries sorted by filename.
	for _, e := range entries {
		if e.Name() == MimetypeName || !present[e.Name()] {
			continue
		}
		order = append(order, e.Name())
	}
	return order, nil
}

func walkInto(w *Writer, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrIO, path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("%w: relative path of %s: %w", ErrIO, path, err)
		}
		name := filepath.ToSlash(rel)
		if name == "." || name == "" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
		}

		switch {
		case d.IsDir():
			return w.AddDirectory(name, info.Mode())
		case info.Mode().IsRegular():
			return w.AddFile(path, name, info.Mode())
		default:
			w.logger.Warn("skipped non-regular file", "name", name, "mode", info.Mode().String())
			return nil
		}
	})
}
