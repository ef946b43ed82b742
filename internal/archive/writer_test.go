package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestWriter_MimetypeStoredFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mimetype"), "application/epub+zip", 0o644)
	writeFile(t, filepath.Join(dir, "chapter.xhtml"), "<html/>", 0o644)

	out := filepath.Join(dir, "out.epub")
	w, err := Create(out, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.AddFile(filepath.Join(dir, "mimetype"), MimetypeName, 0o644); err != nil {
		t.Fatalf("AddFile(mimetype) error = %v", err)
	}
	if err := w.AddFile(filepath.Join(dir, "chapter.xhtml"), "OEBPS/chapter.xhtml", 0o644); err != nil {
		t.Fatalf("AddFile(chapter) error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 2 {
		t.Fatalf("entry count = %d, want 2", len(zr.File))
	}
	first := zr.File[0]
	if first.Name != MimetypeName {
		t.Errorf("first entry = %q, want %q", first.Name, MimetypeName)
	}
	if first.Method != zip.Store {
		t.Errorf("mimetype method = %d, want Store", first.Method)
	}
	if len(first.Extra) != 0 {
		t.Errorf("mimetype extra field length = %d, want 0", len(first.Extra))
	}
	if zr.File[1].Method != zip.Deflate {
		t.Errorf("chapter method = %d, want Deflate", zr.File[1].Method)
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "<html/>" {
		t.Errorf("chapter content = %q, want %q", data, "<html/>")
	}
}

func TestWriter_RejectsEntryBeforeMimetype(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a", 0o644)

	w, err := Create(filepath.Join(dir, "out.zip"), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer w.Close()

	err = w.AddFile(filepath.Join(dir, "a.txt"), "OEBPS/a.txt", 0o644)
	if !errors.Is(err, ErrMimetypeFirst) {
		t.Fatalf("AddFile() error = %v, want ErrMimetypeFirst", err)
	}
	if err := w.AddDirectory("OEBPS", 0o755); !errors.Is(err, ErrMimetypeFirst) {
		t.Fatalf("AddDirectory() error = %v, want ErrMimetypeFirst", err)
	}
}

func TestWriter_DuplicateEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mimetype"), "application/epub+zip", 0o644)

	w, err := Create(filepath.Join(dir, "out.zip"), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer w.Close()

	if err := w.AddFile(filepath.Join(dir, "mimetype"), MimetypeName, 0o644); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.AddDirectory("OEBPS/", 0o755); err != nil {
		t.Fatalf("AddDirectory() error = %v", err)
	}
	if err := w.AddDirectory("OEBPS", 0o755); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("AddDirectory() error = %v, want ErrDuplicateEntry", err)
	}
}

func TestWriter_PermissionsAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mimetype"), "application/epub+zip", 0o644)
	writeFile(t, filepath.Join(dir, "run.sh"), "#!/bin/sh", 0o755)

	out := filepath.Join(dir, "out.zip")
	w, err := Create(out, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.AddFile(filepath.Join(dir, "mimetype"), MimetypeName, 0o644); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.AddDirectory("OEBPS", 0o750); err != nil {
		t.Fatalf("AddDirectory() error = %v", err)
	}
	if err := w.AddFile(filepath.Join(dir, "run.sh"), "OEBPS/run.sh", 0o755); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	defer zr.Close()

	tests := []struct {
		name    string
		wantDir bool
		perm    os.FileMode
	}{
		{name: "mimetype", perm: 0o644},
		{name: "OEBPS/", wantDir: true, perm: 0o750},
		{name: "OEBPS/run.sh", perm: 0o755},
	}
	for i, tt := range tests {
		f := zr.File[i]
		if f.Name != tt.name {
			t.Errorf("entry %d name = %q, want %q", i, f.Name, tt.name)
		}
		if f.Mode().IsDir() != tt.wantDir {
			t.Errorf("entry %q IsDir = %v, want %v", f.Name, f.Mode().IsDir(), tt.wantDir)
		}
		if f.Mode().Perm() != tt.perm {
			t.Errorf("entry %q perm = %o, want %o", f.Name, f.Mode().Perm(), tt.perm)
		}
	}
}

func TestWriter_UnreadableSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mimetype"), "application/epub+zip", 0o644)

	w, err := Create(filepath.Join(dir, "out.zip"), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer w.Close()

	if err := w.AddFile(filepath.Join(dir, "mimetype"), MimetypeName, 0o644); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	err = w.AddFile(filepath.Join(dir, "missing.txt"), "OEBPS/missing.txt", 0o644)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("AddFile() error = %v, want ErrIO", err)
	}
}

func TestCreate_InvalidPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "no", "such", "dir", "out.zip"), nil)
	if !errors.Is(err, ErrCreate) {
		t.Fatalf("Create() error = %v, want ErrCreate", err)
	}
}

var (
	errWriteFailed = errors.New("write failed")
	errCloseFailed = errors.New("close failed")
)

type failingFile struct{}

func (failingFile) Write([]byte) (int, error) { return 0, errWriteFailed }
func (failingFile) Close() error              { return errCloseFailed }

func TestWriter_CloseReportsBothFailures(t *testing.T) {
	w := NewWriter(failingFile{}, nil)
	w.closer = failingFile{}

	err := w.Close()
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Close() error = %v, want ErrIO", err)
	}
	if !errors.Is(err, errWriteFailed) {
		t.Errorf("Close() error = %v, want it to carry the write failure", err)
	}
	if !errors.Is(err, errCloseFailed) {
		t.Errorf("Close() error = %v, want it to carry the close failure", err)
	}
}
