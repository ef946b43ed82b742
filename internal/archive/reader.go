package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxEntrySize caps the decompressed size of a single extracted entry.
const DefaultMaxEntrySize int64 = 256 * 1024 * 1024

// UnsafeEntryError reports an entry whose stored name cannot be confined
// under the extraction root.
type UnsafeEntryError struct {
	Name   string
	Reason string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("archive: unsafe entry name %q: %s", e.Name, e.Reason)
}

func (e *UnsafeEntryError) Unwrap() error {
	return ErrUnsafeEntryName
}

// Reader gives indexed access to the entries of an existing ZIP archive.
type Reader struct {
	zr     *zip.ReadCloser
	logger *slog.Logger
}

// ExtractOptions controls ExtractAll.
type ExtractOptions struct {
	// RejectUnsafe aborts extraction on the first unsafe entry instead of
	// skipping it.
	RejectUnsafe bool
	// MaxEntrySize overrides DefaultMaxEntrySize when positive.
	MaxEntrySize int64
}

// ExtractResult lists entry names as stored in the archive.
type ExtractResult struct {
	Extracted []string
	Skipped   []string
}

// Open opens the ZIP archive at path.
func Open(path string, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	zr, err := zip.OpenReader(path)
	// Non-local names are still readable; they are vetted per entry on extraction.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	return &Reader{zr: zr, logger: logger}, nil
}

// Close releases the archive file.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Len returns the number of entries in the archive.
func (r *Reader) Len() int {
	return len(r.zr.File)
}

// Names returns entry names in stored order.
func (r *Reader) Names() []string {
	names := make([]string, len(r.zr.File))
	for i, f := range r.zr.File {
		names[i] = f.Name
	}
	return names
}

// Entry returns the entry at index i.
func (r *Reader) Entry(i int) *zip.File {
	return r.zr.File[i]
}

// ExtractAll recreates the archive's directory tree under dest, entry by
// entry in stored order. Entries that cannot be confined under dest are
// skipped and reported in the result, or returned as *UnsafeEntryError when
// opts.RejectUnsafe is set.
func (r *Reader) ExtractAll(dest string, opts ExtractOptions) (ExtractResult, error) {
	var res ExtractResult

	limit := opts.MaxEntrySize
	if limit <= 0 {
		limit = DefaultMaxEntrySize
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return res, fmt.Errorf("%w %s: %w", ErrCreate, dest, err)
	}

	for i := 0; i < r.Len(); i++ {
		f := r.Entry(i)

		rel, err := resolveEntryName(f)
		if err != nil {
			if opts.RejectUnsafe {
				return res, err
			}
			r.logger.Warn("skipped unsafe entry", "name", f.Name, "error", err)
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(rel))
		if isDirEntry(f) {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, fmt.Errorf("%w %s: %w", ErrCreate, target, err)
			}
		} else if err := extractFile(f, target, limit); err != nil {
			return res, err
		}

		r.logger.Info("extracted entry", "name", f.Name)
		res.Extracted = append(res.Extracted, f.Name)
	}

	return res, nil
}

func extractFile(f *zip.File, target string, limit int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w %s: %w", ErrCreate, filepath.Dir(target), err)
	}

	if f.UncompressedSize64 > uint64(limit) {
		return fmt.Errorf("%w: entry %s too large: %d bytes (max %d)", ErrIO, f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %w", ErrIO, f.Name, err)
	}
	defer rc.Close()

	// Owner read/write is forced so the tree can be edited and repacked.
	perm := f.Mode().Perm() | 0o600
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrCreate, target, err)
	}

	// The declared size may be forged; read one byte past the limit to catch it.
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: extract %s: %w", ErrIO, f.Name, err)
	}
	if n > limit {
		return fmt.Errorf("%w: entry %s decompressed size exceeds limit (%d bytes)", ErrIO, f.Name, limit)
	}
	return nil
}

// resolveEntryName maps a stored entry name to a slash-separated path that
// stays under the extraction root.
func resolveEntryName(f *zip.File) (string, error) {
	name := f.Name
	unsafe := func(reason string) (string, error) {
		return "", &UnsafeEntryError{Name: name, Reason: reason}
	}

	if f.Mode()&fs.ModeSymlink != 0 {
		return unsafe("symbolic link")
	}
	if name == "" {
		return unsafe("empty name")
	}
	if strings.ContainsRune(name, 0) {
		return unsafe("contains NUL byte")
	}

	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") {
		return unsafe("absolute path")
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return unsafe("refers to the extraction root")
	}
	if !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return unsafe("escapes the extraction root")
	}
	return cleaned, nil
}

func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || strings.HasSuffix(f.Name, `\`) || f.Mode().IsDir()
}
