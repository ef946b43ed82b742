package manifest

import "fmt"

// Mode selects how the package document is edited.
type Mode string

const (
	// ModeLine inserts a text line after the first line containing Marker.
	ModeLine Mode = "line"
	// ModeXML parses the document and inserts an element into <manifest>.
	ModeXML Mode = "xml"
)

// ParseMode validates a mode name. The empty string selects ModeLine.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLine:
		return ModeLine, nil
	case ModeXML:
		return ModeXML, nil
	default:
		return "", fmt.Errorf("unknown edit mode %q (want %q or %q)", s, ModeLine, ModeXML)
	}
}

// Insert adds item to the package document at path using mode.
func Insert(path string, mode Mode, item Item) error {
	if mode == ModeXML {
		return InsertElement(path, item)
	}
	return InsertLine(path, item)
}
