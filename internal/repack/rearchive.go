package repack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuanying/append-cover-epub/internal/archive"
	"github.com/yuanying/append-cover-epub/internal/epub"
	"github.com/yuanying/append-cover-epub/internal/manifest"
)

// rearchive packs scratch into a temporary file beside the input EPUB,
// verifies it and renames it over the input. The input is untouched on any
// failure before the rename.
func (p *Pipeline) rearchive(scratch string) (err error) {
	target := p.Options.EPUBPath
	origInfo, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("%w %s: %w", archive.ErrOpen, target, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: temporary output beside %s: %w", archive.ErrCreate, target, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	w, err := archive.Create(tmpPath, p.logger)
	if err != nil {
		return err
	}
	if err := archive.WriteTree(w, scratch); err != nil {
		w.Close()
		return fmt.Errorf("failed to archive %s: %w", scratch, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := p.verify(tmpPath); err != nil {
		return err
	}

	if err := os.Chmod(tmpPath, origInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", archive.ErrIO, tmpPath, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("%w: replace %s: %w", archive.ErrIO, target, err)
	}

	p.logger.Info("wrote EPUB", "path", target)
	return nil
}

// verify reopens the new archive. The cover entry must be present; OCF
// layout problems inherited from the input are warnings unless Strict.
func (p *Pipeline) verify(path string) error {
	pkg, err := epub.Open(path)
	if err != nil {
		if p.Options.Strict {
			return fmt.Errorf("%w: %w", ErrVerify, err)
		}
		p.logger.Warn("repacked EPUB has container problems", "error", err)
		return p.verifyEntry(path)
	}
	defer pkg.Close()

	if _, ok := pkg.Files()[p.result.CoverPath]; !ok {
		return fmt.Errorf("%w: missing %s", ErrVerify, p.result.CoverPath)
	}

	data, err := pkg.ReadFile(p.result.OPFPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if opf, err := epub.ParseOPF(data, ""); err == nil && !opf.HasID(manifest.CoverID) {
		return fmt.Errorf("%w: %s does not declare %s", ErrVerify, p.result.OPFPath, manifest.CoverID)
	}
	return nil
}

// verifyEntry checks only that the cover made it into the archive.
func (p *Pipeline) verifyEntry(path string) error {
	r, err := archive.Open(path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}
	defer r.Close()

	for _, name := range r.Names() {
		if name == p.result.CoverPath {
			return nil
		}
	}
	return fmt.Errorf("%w: missing %s", ErrVerify, p.result.CoverPath)
}
