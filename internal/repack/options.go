package repack

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/yuanying/append-cover-epub/internal/manifest"
)

const defaultScratchParent = "."

// JPEG quality bounds for a downscaled cover.
const (
	DefaultJPEGQuality = 90
	MinJPEGQuality     = 60
	MaxJPEGQuality     = 100
)

var (
	ErrInvalidSubtype  = errors.New("invalid media subtype")
	ErrCoverPresent    = errors.New("book already declares a cover image")
	ErrSubtypeMismatch = errors.New("image format does not match media subtype")
	ErrImage           = errors.New("cover image")
	ErrVerify          = errors.New("repacked EPUB failed verification")
	ErrJPEGQuality     = errors.New("jpeg quality out of range")
)

// MIME subtype tokens; also safe as a file extension.
var subtypePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.+-]*$`)

// Options holds options for the repack pipeline.
type Options struct {
	EPUBPath  string // rewritten in place on success
	ImagePath string // copied, never moved
	Subtype   string // e.g. "jpeg": names cover.<subtype> and image/<subtype>

	// KeepScratch leaves the extracted tree on disk after the run.
	KeepScratch bool
	// ScratchParent is where the scratch directory is created. Default ".".
	ScratchParent string

	// OPFPath overrides the package document location (slash-separated,
	// relative to the EPUB root). Empty resolves it from container.xml.
	OPFPath  string
	EditMode manifest.Mode

	// MaxImageWidth downscales wider cover images; 0 copies the image verbatim.
	MaxImageWidth int
	JPEGQuality   int

	// Strict turns warnings (skipped unsafe entries, existing cover,
	// subtype mismatch, unparseable package document) into errors.
	Strict bool

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.ScratchParent == "" {
		o.ScratchParent = defaultScratchParent
	}
	if o.EditMode == "" {
		o.EditMode = manifest.ModeLine
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

func (o *Options) validate() error {
	if err := ValidateSubtype(o.Subtype); err != nil {
		return err
	}
	if _, err := manifest.ParseMode(string(o.EditMode)); err != nil {
		return err
	}
	if o.JPEGQuality < MinJPEGQuality || o.JPEGQuality > MaxJPEGQuality {
		return fmt.Errorf("%w: %d not in %d..%d", ErrJPEGQuality, o.JPEGQuality, MinJPEGQuality, MaxJPEGQuality)
	}
	if o.OPFPath != "" && !filepath.IsLocal(filepath.FromSlash(o.OPFPath)) {
		return fmt.Errorf("package document path %q must be relative to the EPUB root", o.OPFPath)
	}
	if o.MaxImageWidth < 0 {
		return fmt.Errorf("max image width must not be negative: %d", o.MaxImageWidth)
	}
	if err := requireRegularFile("EPUB", o.EPUBPath); err != nil {
		return err
	}
	return requireRegularFile("image", o.ImagePath)
}

// ValidateSubtype checks that subtype can serve both as a MIME subtype and
// as a file extension.
func ValidateSubtype(subtype string) error {
	if !subtypePattern.MatchString(subtype) {
		return fmt.Errorf("%w: %q", ErrInvalidSubtype, subtype)
	}
	return nil
}

func requireRegularFile(what, path string) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", what)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s %s is not a regular file", what, path)
	}
	return nil
}
