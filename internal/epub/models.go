package epub

// OPF represents the parts of a package document the cover tool inspects
type OPF struct {
	Version       string
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Guide         []GuideReference
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title      string
	Language   string
	Identifier string
	CoverID    string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// ManifestItem represents an item in the manifest.
// Href is resolved against the OPF directory (e.g. "OEBPS/cover.jpeg").
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// GuideReference represents an EPUB 2.0 guide reference
type GuideReference struct {
	Type  string
	Title string
	Href  string
}

// HasID reports whether the manifest declares an item with the given id.
func (opf *OPF) HasID(id string) bool {
	_, ok := opf.Manifest[id]
	return ok
}
