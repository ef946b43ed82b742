package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
)

// MimetypeName is the entry every EPUB container must start with.
const MimetypeName = "mimetype"

var (
	ErrOpen            = errors.New("archive: cannot open")
	ErrCreate          = errors.New("archive: cannot create")
	ErrIO              = errors.New("archive: i/o failure")
	ErrMimetypeFirst   = errors.New("archive: first entry must be " + MimetypeName)
	ErrDuplicateEntry  = errors.New("archive: duplicate entry name")
	ErrUnsafeEntryName = errors.New("archive: unsafe entry name")
)

// Writer appends entries to a ZIP archive in insertion order.
// The first entry must be MimetypeName; it is always stored uncompressed.
type Writer struct {
	zw     *zip.Writer
	closer io.Closer
	logger *slog.Logger
	names  map[string]struct{}
}

// NewWriter returns a Writer emitting to w. A nil logger discards progress output.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	return &Writer{
		zw:     zw,
		logger: logger,
		names:  make(map[string]struct{}),
	}
}

// Create creates (or truncates) the file at path and returns a Writer on it.
func Create(path string, logger *slog.Logger) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCreate, path, err)
	}

	w := NewWriter(f, logger)
	w.closer = f
	return w, nil
}

// AddFile reads src in full and appends it under name with the given
// permission bits.
func (w *Writer) AddFile(src, name string, perm fs.FileMode) error {
	if err := w.claim(name); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, src, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrIO, src, err)
	}

	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	if name == MimetypeName {
		// Stored with no extra field so readers can sniff the type at a fixed offset.
		header.Method = zip.Store
	} else {
		header.Modified = info.ModTime()
	}
	header.SetMode(perm.Perm())

	fw, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: entry %s: %w", ErrIO, name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, name, err)
	}

	w.logger.Info("added entry", "name", name, "bytes", len(data))
	return nil
}

// AddDirectory appends a directory entry. A trailing slash is added to name
// when missing.
func (w *Writer) AddDirectory(name string, perm fs.FileMode) error {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if err := w.claim(name); err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	}
	header.SetMode(fs.ModeDir | perm.Perm())

	if _, err := w.zw.CreateHeader(header); err != nil {
		return fmt.Errorf("%w: directory %s: %w", ErrIO, name, err)
	}

	w.logger.Info("added directory", "name", name)
	return nil
}

// Close flushes the central directory and closes the underlying file, if any.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		err = fmt.Errorf("%w: finish archive: %w", ErrIO, err)
		if w.closer != nil {
			if cerr := w.closer.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("%w: close archive: %w", ErrIO, cerr))
			}
		}
		return err
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return fmt.Errorf("%w: close archive: %w", ErrIO, err)
		}
	}
	return nil
}

func (w *Writer) claim(name string) error {
	if len(w.names) == 0 && name != MimetypeName {
		return fmt.Errorf("%w, got %q", ErrMimetypeFirst, name)
	}
	if _, dup := w.names[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	w.names[name] = struct{}{}
	return nil
}
