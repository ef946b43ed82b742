package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"
)

// ErrDuplicateID is returned by InsertElement when the manifest already
// declares an item with the same id.
var ErrDuplicateID = errors.New("manifest: duplicate item id")

// InsertElement adds item as the first child of the package document's
// manifest element, whatever its prefix or attributes. The rest of the
// document is re-serialized as parsed.
func InsertElement(path string, item Item) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrIO, path, err)
	}

	manifest := doc.FindElement("//manifest")
	if manifest == nil {
		return fmt.Errorf("%s: %w %q", path, ErrMarkerNotFound, "manifest")
	}
	for _, existing := range manifest.SelectElements("item") {
		if existing.SelectAttrValue("id", "") == item.ID {
			return fmt.Errorf("%s: %w: %s", path, ErrDuplicateID, item.ID)
		}
	}

	el := etree.NewElement("item")
	el.Space = manifest.Space
	for _, attr := range item.attrs() {
		el.CreateAttr(attr[0], attr[1])
	}

	// Keep the existing indentation: [ws, item, ...] becomes [ws, new, ws, item, ...].
	if len(manifest.Child) > 0 {
		if ws, ok := manifest.Child[0].(*etree.CharData); ok && ws.IsWhitespace() {
			manifest.InsertChildAt(1, el)
			manifest.InsertChildAt(2, etree.NewText(ws.Data))
		} else {
			manifest.InsertChildAt(0, el)
		}
	} else {
		manifest.AddChild(el)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("%w: serialize %s: %w", ErrIO, path, err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return nil
}
