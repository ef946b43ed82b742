package manifest

import (
	"fmt"
	"html"
	"strings"
)

// CoverID is the manifest id given to an inserted cover image.
const CoverID = "my-cover-image"

// Item is a single manifest item declaration.
type Item struct {
	Properties string
	ID         string
	Href       string
	MediaType  string
}

// CoverItem declares the cover image cover.<subtype> with media type image/<subtype>.
func CoverItem(subtype string) Item {
	return Item{
		Properties: "cover-image",
		ID:         CoverID,
		Href:       CoverFilename(subtype),
		MediaType:  "image/" + subtype,
	}
}

// CoverFilename is the name the cover image is stored under, next to the package document.
func CoverFilename(subtype string) string {
	return "cover." + subtype
}

// Line renders the item as one self-closing element, attributes in
// properties, id, href, media-type order.
func (it Item) Line() string {
	var b strings.Builder
	b.WriteString("<item")
	for _, attr := range it.attrs() {
		fmt.Fprintf(&b, ` %s="%s"`, attr[0], html.EscapeString(attr[1]))
	}
	b.WriteString("/>")
	return b.String()
}

func (it Item) attrs() [][2]string {
	all := [][2]string{
		{"properties", it.Properties},
		{"id", it.ID},
		{"href", it.Href},
		{"media-type", it.MediaType},
	}
	attrs := all[:0]
	for _, a := range all {
		if a[1] != "" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}
