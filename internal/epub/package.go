package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

const mimetypeContent = "application/epub+zip"

// maxReadSize caps how much of a single entry ReadFile will decompress.
const maxReadSize int64 = 256 * 1024 * 1024

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrMimetypeNotFirst   = errors.New("mimetype must be the first archive entry")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
	ErrOPFPathNotLocal    = errors.New("OPF path in container.xml leaves the EPUB root")
	ErrFileNotFound       = errors.New("file not found")
)

// Package provides read access to a packaged EPUB and checks its OCF layout
type Package struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	opfPath   string
}

// Open opens an EPUB file and validates its container structure:
// mimetype first, stored, with the EPUB media type, and a container.xml
// naming a package document.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	pkg := &Package{
		zipReader: zr,
		files:     make(map[string]*zip.File),
	}

	for _, f := range zr.File {
		pkg.files[normalizePath(f.Name)] = f
	}

	if err := pkg.validateMimetype(); err != nil {
		zr.Close()
		return nil, err
	}

	content, err := pkg.ReadFile(ContainerPath)
	if err != nil {
		zr.Close()
		return nil, ErrContainerNotFound
	}
	pkg.opfPath, err = parseContainer(content)
	if err != nil {
		zr.Close()
		return nil, err
	}

	return pkg, nil
}

// Close closes the EPUB reader
func (p *Package) Close() error {
	return p.zipReader.Close()
}

// OPFPath returns the path to the OPF file
func (p *Package) OPFPath() string {
	return p.opfPath
}

// Files returns a map of all files in the EPUB
func (p *Package) Files() map[string]*zip.File {
	return p.files
}

// ReadFile reads the contents of a file from the EPUB
func (p *Package) ReadFile(name string) ([]byte, error) {
	name = normalizePath(name)
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxReadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	if int64(len(data)) > maxReadSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", name, maxReadSize)
	}
	return data, nil
}

// validateMimetype checks that the mimetype file exists, comes first and is valid
func (p *Package) validateMimetype() error {
	f, ok := p.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}

	if p.zipReader.File[0] != f {
		return ErrMimetypeNotFirst
	}

	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := p.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}

	if string(content) != mimetypeContent {
		return ErrInvalidMimetype
	}

	return nil
}
