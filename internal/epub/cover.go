package epub

import (
	"path"
	"strings"
)

// Cover detection methods, in priority order.
const (
	DetectedByProperty  = "manifest-property"
	DetectedByMeta      = "metadata-cover"
	DetectedByGuide     = "guide-reference"
	DetectedByGuidePage = "guide-xhtml-first-img"
	DetectedByFilename  = "filename-pattern"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string
}

// FileReader reads EPUB-internal files by slash-separated path.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// DetectCover detects the cover image from the OPF manifest using multiple methods.
// Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover", either an image item or an XHTML page whose first
//     image is a manifest item (the page is read through reader; nil skips it)
//  4. filename pattern (basename contains "cover", case-insensitive, SVG excluded)
//
// Returns nil if no cover image is found.
func (opf *OPF) DetectCover(reader FileReader) *CoverInfo {
	if info := opf.coverByProperty(); info != nil {
		return info
	}
	if info := opf.coverByMeta(); info != nil {
		return info
	}
	if info := opf.coverByGuide(reader); info != nil {
		return info
	}
	return opf.coverByFilename()
}

func (opf *OPF) coverByProperty() *CoverInfo {
	for _, item := range opf.orderedItems() {
		for _, prop := range item.Properties {
			if strings.EqualFold(prop, "cover-image") {
				return newCoverInfo(item, DetectedByProperty)
			}
		}
	}
	return nil
}

func (opf *OPF) coverByMeta() *CoverInfo {
	if opf.Metadata.CoverID == "" {
		return nil
	}
	item, ok := opf.Manifest[opf.Metadata.CoverID]
	if !ok || !isImageMediaType(item.MediaType) {
		return nil
	}
	return newCoverInfo(item, DetectedByMeta)
}

func (opf *OPF) coverByGuide(reader FileReader) *CoverInfo {
	for _, ref := range opf.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}

		target := stripFragment(ref.Href)
		item, ok := opf.itemByHref(target)
		if ok && isImageMediaType(item.MediaType) {
			return newCoverInfo(item, DetectedByGuide)
		}
		if reader == nil || (ok && !isXHTMLMediaType(item.MediaType)) {
			continue
		}

		data, err := reader.ReadFile(target)
		if err != nil {
			continue
		}
		content, err := LoadContent(item.ID, target, data)
		if err != nil || len(content.ImageRefs) == 0 {
			continue
		}
		if img, ok := opf.itemByHref(content.ImageRefs[0]); ok && isImageMediaType(img.MediaType) {
			return newCoverInfo(img, DetectedByGuidePage)
		}
	}
	return nil
}

func (opf *OPF) coverByFilename() *CoverInfo {
	for _, item := range opf.orderedItems() {
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return newCoverInfo(item, DetectedByFilename)
		}
	}
	return nil
}

func (opf *OPF) orderedItems() []ManifestItem {
	items := make([]ManifestItem, 0, len(opf.ManifestOrder))
	for _, id := range opf.ManifestOrder {
		if item, ok := opf.Manifest[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

func (opf *OPF) itemByHref(href string) (ManifestItem, bool) {
	want := path.Clean(stripFragment(href))
	for _, item := range opf.orderedItems() {
		if path.Clean(stripFragment(item.Href)) == want {
			return item, true
		}
	}
	return ManifestItem{}, false
}

func newCoverInfo(item ManifestItem, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID:      item.ID,
		Href:            item.Href,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}

func stripFragment(href string) string {
	pathPart, _, _ := strings.Cut(href, "#")
	return pathPart
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

func isXHTMLMediaType(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}
