package epub

import (
	"bytes"
	"fmt"
	"path"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content file
type Content struct {
	ID        string            // Manifest ID
	Path      string            // File path
	Document  *goquery.Document // Parsed HTML document
	ImageRefs []string          // Referenced image paths, in document order
}

// LoadContent loads and parses an XHTML content file
// id: manifest item ID
// path: file path within EPUB (used for relative path resolution)
// content: XHTML file content
func LoadContent(id, filePath string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		ID:        id,
		Path:      filePath,
		Document:  doc,
		ImageRefs: []string{},
	}

	baseDir := path.Dir(filePath)

	// Cover pages use either <img src> or an SVG <image xlink:href>.
	doc.Find("img, image").Each(func(i int, s *goquery.Selection) {
		ref, ok := s.Attr("src")
		if !ok {
			ref, ok = s.Attr("xlink:href")
		}
		if !ok {
			ref, ok = s.Attr("href")
		}
		if ok && ref != "" {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, ref))
		}
	})

	return c, nil
}

// resolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func resolvePath(baseDir, relPath string) string {
	return path.Clean(path.Join(baseDir, relPath))
}
