package epub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

const (
	// ContainerPath is the container descriptor every EPUB carries.
	ContainerPath = "META-INF/container.xml"
	// DefaultOPFPath is used when no container descriptor names a package document.
	DefaultOPFPath = "OEBPS/book.opf"

	packageMediaType = "application/oebps-package+xml"
)

// FindOPF resolves the package document of the unpacked EPUB rooted at root.
// The result is slash-separated and relative to root.
func FindOPF(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ContainerPath)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContainerNotFound, err)
	}
	return parseContainer(data)
}

// parseContainer returns the first rootfile with the package media type,
// or the first rootfile at all. Paths that leave the EPUB root are ignored.
func parseContainer(data []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}

	var unsafe string
	localPath := func(rf *etree.Element) string {
		p := normalizePath(rf.SelectAttrValue("full-path", ""))
		if p != "" && !filepath.IsLocal(filepath.FromSlash(p)) {
			unsafe = p
			return ""
		}
		return p
	}

	rootfiles := doc.FindElements("//rootfiles/rootfile[@full-path]")
	for _, rf := range rootfiles {
		mediaType := rf.SelectAttrValue("media-type", "")
		if mediaType == packageMediaType || mediaType == "" {
			if p := localPath(rf); p != "" {
				return p, nil
			}
		}
	}
	for _, rf := range rootfiles {
		if p := localPath(rf); p != "" {
			return p, nil
		}
	}

	if unsafe != "" {
		return "", fmt.Errorf("%w: %q", ErrOPFPathNotLocal, unsafe)
	}
	return "", ErrOPFPathNotFound
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	return strings.TrimPrefix(p, "./")
}
