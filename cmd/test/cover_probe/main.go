// Debug program for cover detection.
//
// Usage:
//   go run ./cmd/test/cover_probe/main.go <epub-file-path>
//
// This program will:
// - Open and validate the EPUB container
// - Parse the package document
// - Show the cover image the book already declares, if any
// - Report whether the appended cover item is present

package main

import (
	"fmt"
	"os"
	"path"

	"github.com/yuanying/append-cover-epub/internal/epub"
	"github.com/yuanying/append-cover-epub/internal/manifest"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <epub-file-path>\n", os.Args[0])
		os.Exit(1)
	}

	epubPath := os.Args[1]
	fmt.Println("=== EPUB Cover Probe ===")
	fmt.Printf("File: %s\n\n", epubPath)

	pkg, err := epub.Open(epubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening EPUB: %v\n", err)
		os.Exit(1)
	}
	defer pkg.Close()

	fmt.Printf("Entries:  %d\n", len(pkg.Files()))
	fmt.Printf("OPF Path: %s\n\n", pkg.OPFPath())

	data, err := pkg.ReadFile(pkg.OPFPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading OPF file: %v\n", err)
		os.Exit(1)
	}
	opf, err := epub.ParseOPF(data, path.Dir(pkg.OPFPath()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing OPF: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- Metadata ---")
	fmt.Printf("Title:      %s\n", opf.Metadata.Title)
	fmt.Printf("Language:   %s\n", opf.Metadata.Language)
	fmt.Printf("Identifier: %s\n", opf.Metadata.Identifier)
	fmt.Printf("Version:    %s\n", opf.Version)

	fmt.Printf("\n--- Manifest ---\n")
	fmt.Printf("Total items: %d\n", len(opf.Manifest))

	fmt.Printf("\n--- Cover ---\n")
	if cover := opf.DetectCover(pkg); cover != nil {
		fmt.Printf("Href:       %s\n", cover.Href)
		fmt.Printf("ID:         %s\n", cover.ManifestID)
		fmt.Printf("Media type: %s\n", cover.MediaType)
		fmt.Printf("Detected:   %s\n", cover.DetectionMethod)
		if _, ok := pkg.Files()[cover.Href]; !ok {
			fmt.Println("Warning: cover entry is missing from the archive")
		}
	} else {
		fmt.Println("(not found)")
	}

	if opf.HasID(manifest.CoverID) {
		fmt.Printf("\nAppended cover item %q is present\n", manifest.CoverID)
	}
}
