package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Marker is the text that identifies the manifest open line.
const Marker = "<manifest>"

var (
	ErrOpen           = errors.New("manifest: cannot open")
	ErrIO             = errors.New("manifest: i/o failure")
	ErrMarkerNotFound = errors.New("manifest: no line contains the manifest marker")
)

// Load reads path as a sequence of lines without their terminators.
// Both "\n" and "\r\n" endings are accepted.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	text := string(data)
	if text == "" {
		return []string{}, nil
	}
	text = strings.TrimSuffix(text, "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

// InsertAfterMarker returns a copy of lines with newLine inserted directly
// after the first line containing marker. lines is not modified.
func InsertAfterMarker(lines []string, marker, newLine string) ([]string, error) {
	for i, line := range lines {
		if !strings.Contains(line, marker) {
			continue
		}
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i+1]...)
		out = append(out, newLine)
		out = append(out, lines[i+1:]...)
		return out, nil
	}
	return nil, fmt.Errorf("%w %q", ErrMarkerNotFound, marker)
}

// Save writes lines to path, each terminated by "\n". An existing file keeps
// its permission bits.
func Save(path string, lines []string) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), perm); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return nil
}

// InsertLine adds item to the package document at path as a new line right
// after the manifest open line. The file is left untouched when no such line
// exists.
func InsertLine(path string, item Item) error {
	lines, err := Load(path)
	if err != nil {
		return err
	}
	lines, err = InsertAfterMarker(lines, Marker, item.Line())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return Save(path, lines)
}
