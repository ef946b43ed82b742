package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const coverLine = `<item properties="cover-image" id="my-cover-image" href="cover.jpeg" media-type="image/jpeg"/>`

// bookOPF has its <manifest> line at index 9 (line 10).
const bookOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="BookId">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Sample</dc:title>
<dc:language>ja</dc:language>
<dc:identifier id="BookId">urn:uuid:1234</dc:identifier>
<meta property="dcterms:modified">2024-01-01T00:00:00Z</meta>
</metadata>

<manifest>
<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
<item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
</manifest>
<spine>
<itemref idref="ch1"/>
</spine>
</package>
`

func writeOPF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.opf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write opf: %v", err)
	}
	return path
}

func TestCoverItem_Line(t *testing.T) {
	tests := []struct {
		subtype string
		want    string
	}{
		{"jpeg", coverLine},
		{"png", `<item properties="cover-image" id="my-cover-image" href="cover.png" media-type="image/png"/>`},
	}
	for _, tt := range tests {
		if got := CoverItem(tt.subtype).Line(); got != tt.want {
			t.Errorf("CoverItem(%q).Line() = %q, want %q", tt.subtype, got, tt.want)
		}
	}
}

func TestLoad_LineEndings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"lf", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"blank lines kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(writeOPF(t, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Load() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.opf"))
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Load() error = %v, want ErrOpen", err)
	}
}

func TestInsertAfterMarker(t *testing.T) {
	lines := []string{"<package>", "  <manifest>", "  </manifest>", "</package>"}
	orig := append([]string(nil), lines...)

	got, err := InsertAfterMarker(lines, Marker, "NEW")
	if err != nil {
		t.Fatalf("InsertAfterMarker() error = %v", err)
	}

	if len(got) != len(lines)+1 {
		t.Fatalf("len = %d, want %d", len(got), len(lines)+1)
	}
	if got[2] != "NEW" {
		t.Errorf("got[2] = %q, want %q", got[2], "NEW")
	}
	// Remaining lines keep their relative order.
	rest := append(append([]string(nil), got[:2]...), got[3:]...)
	for i := range orig {
		if rest[i] != orig[i] {
			t.Errorf("line %d = %q, want %q", i, rest[i], orig[i])
		}
	}
	// Input slice is unchanged.
	for i := range orig {
		if lines[i] != orig[i] {
			t.Errorf("input mutated at %d: %q", i, lines[i])
		}
	}
}

func TestInsertAfterMarker_FirstMatchOnly(t *testing.T) {
	lines := []string{"<manifest>", "<!-- <manifest> -->"}
	got, err := InsertAfterMarker(lines, Marker, "NEW")
	if err != nil {
		t.Fatalf("InsertAfterMarker() error = %v", err)
	}
	want := []string{"<manifest>", "NEW", "<!-- <manifest> -->"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("InsertAfterMarker() = %q, want %q", got, want)
	}
}

func TestInsertAfterMarker_NotFound(t *testing.T) {
	_, err := InsertAfterMarker([]string{"<package>", `<manifest id="m">`}, Marker, "NEW")
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("InsertAfterMarker() error = %v, want ErrMarkerNotFound", err)
	}
}

func TestInsertLine_Scenario(t *testing.T) {
	path := writeOPF(t, bookOPF)

	if err := InsertLine(path, CoverItem("jpeg")); err != nil {
		t.Fatalf("InsertLine() error = %v", err)
	}

	lines, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if lines[9] != "<manifest>" {
		t.Fatalf("line 10 = %q, want <manifest>", lines[9])
	}
	if lines[10] != coverLine {
		t.Errorf("line 11 = %q, want %q", lines[10], coverLine)
	}
	if len(lines) != strings.Count(bookOPF, "\n")+1 {
		t.Errorf("line count = %d, want %d", len(lines), strings.Count(bookOPF, "\n")+1)
	}
}

func TestInsertLine_MarkerMissingLeavesFileUntouched(t *testing.T) {
	content := "<package>\n<opf:manifest>\n</opf:manifest>\n</package>"
	path := writeOPF(t, content)

	err := InsertLine(path, CoverItem("png"))
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("InsertLine() error = %v, want ErrMarkerNotFound", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Errorf("file changed: %q", got)
	}
}

func TestSave_PreservesMode(t *testing.T) {
	path := writeOPF(t, "x\n")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, []string{"a", "b"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}
	got, _ := os.ReadFile(path)
	if string(got) != "a\nb\n" {
		t.Errorf("content = %q, want %q", got, "a\nb\n")
	}
}
