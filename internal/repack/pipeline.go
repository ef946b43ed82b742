package repack

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/yuanying/append-cover-epub/internal/archive"
	"github.com/yuanying/append-cover-epub/internal/epub"
	"github.com/yuanying/append-cover-epub/internal/manifest"
)

// Stage is a step of the repack state machine. Stages only move forward.
type Stage int

const (
	StageStart Stage = iota
	StageExtracted
	StageManifestEdited
	StageImageCopied
	StageRearchived
	StageCleaned
	StageKept
	StageDone
)

var stageNames = [...]string{
	StageStart:          "start",
	StageExtracted:      "extracted",
	StageManifestEdited: "manifest-edited",
	StageImageCopied:    "image-copied",
	StageRearchived:     "rearchived",
	StageCleaned:        "cleaned",
	StageKept:           "kept",
	StageDone:           "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Result describes a run.
type Result struct {
	// Stage is the last stage reached; StageDone on success.
	Stage Stage
	// ScratchDir is set when the scratch directory was kept.
	ScratchDir string
	// OPFPath and CoverPath are slash-separated paths inside the EPUB.
	OPFPath   string
	CoverPath string
	// SkippedEntries lists archive entries not extracted because their
	// names were unsafe.
	SkippedEntries []string
	// ExistingCover is the cover the book declared before the run, if any.
	ExistingCover *epub.CoverInfo
}

// Pipeline injects a cover image into an EPUB: extract, edit the package
// document, copy the image, re-archive, clean up. It is not safe for
// concurrent use, but distinct pipelines never share a scratch directory.
type Pipeline struct {
	Options Options
	logger  *slog.Logger
	result  Result
}

// NewPipeline creates a new repack pipeline.
func NewPipeline(opts Options) *Pipeline {
	opts.applyDefaults()
	return &Pipeline{
		Options: opts,
		logger:  opts.Logger,
	}
}

// Run executes the pipeline. Every step is fatal on error. The scratch
// directory is removed on every exit path unless KeepScratch is set, and the
// input EPUB is only replaced once the new archive is complete and verified.
func (p *Pipeline) Run() (res Result, err error) {
	p.result = Result{}
	if err := p.Options.validate(); err != nil {
		return p.result, err
	}

	scratch, err := newScratchDir(p.Options.ScratchParent)
	if err != nil {
		return p.result, err
	}
	p.logger.Debug("created scratch directory", "path", scratch)

	defer func() {
		if p.Options.KeepScratch {
			p.result.ScratchDir = scratch
			p.logger.Info("kept scratch directory", "path", scratch)
			if err == nil {
				p.advance(StageKept)
			}
		} else if rmErr := os.RemoveAll(scratch); rmErr != nil {
			p.logger.Warn("failed to remove scratch directory", "path", scratch, "error", rmErr)
		} else if err == nil {
			p.advance(StageCleaned)
		}
		if err == nil {
			p.advance(StageDone)
		}
		res = p.result
	}()

	if err := p.extract(scratch); err != nil {
		return p.result, err
	}
	p.advance(StageExtracted)

	opfRel, err := p.editManifest(scratch)
	if err != nil {
		return p.result, err
	}
	p.advance(StageManifestEdited)

	coverRel := path.Join(path.Dir(opfRel), manifest.CoverFilename(p.Options.Subtype))
	if err := p.placeCover(p.Options.ImagePath, filepath.Join(scratch, filepath.FromSlash(coverRel))); err != nil {
		return p.result, err
	}
	p.result.CoverPath = coverRel
	p.advance(StageImageCopied)

	if err := p.rearchive(scratch); err != nil {
		return p.result, err
	}
	p.advance(StageRearchived)

	return p.result, nil
}

func (p *Pipeline) advance(s Stage) {
	p.result.Stage = s
	p.logger.Debug("stage reached", "stage", s.String())
}

// extract unpacks the input EPUB into scratch.
func (p *Pipeline) extract(scratch string) error {
	r, err := archive.Open(p.Options.EPUBPath, p.logger)
	if err != nil {
		return err
	}
	defer r.Close()

	p.logger.Debug("extracting", "epub", p.Options.EPUBPath, "entries", r.Len())
	res, err := r.ExtractAll(scratch, archive.ExtractOptions{RejectUnsafe: p.Options.Strict})
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", p.Options.EPUBPath, err)
	}
	p.result.SkippedEntries = res.Skipped
	return nil
}

// editManifest declares the cover in the package document and returns its
// slash-separated path relative to scratch.
func (p *Pipeline) editManifest(scratch string) (string, error) {
	opfRel := p.locateOPF(scratch)
	p.result.OPFPath = opfRel
	opfFull := filepath.Join(scratch, filepath.FromSlash(opfRel))

	if err := p.checkExistingCover(scratch, opfRel); err != nil {
		return "", err
	}

	item := manifest.CoverItem(p.Options.Subtype)
	if err := manifest.Insert(opfFull, p.Options.EditMode, item); err != nil {
		return "", fmt.Errorf("failed to edit package document %s: %w", opfRel, err)
	}
	p.logger.Info("declared cover image", "opf", opfRel, "href", item.Href, "media_type", item.MediaType)
	return opfRel, nil
}

func (p *Pipeline) locateOPF(scratch string) string {
	if p.Options.OPFPath != "" {
		return p.Options.OPFPath
	}
	opfRel, err := epub.FindOPF(scratch)
	if err != nil {
		p.logger.Warn("falling back to default package document path", "path", epub.DefaultOPFPath, "error", err)
		return epub.DefaultOPFPath
	}
	return opfRel
}

// checkExistingCover looks for a cover the book already declares. Only
// insertion is supported, so one is reported, or rejected in strict mode.
func (p *Pipeline) checkExistingCover(scratch, opfRel string) error {
	dir := epub.Dir(scratch)
	data, err := dir.ReadFile(opfRel)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", manifest.ErrOpen, opfRel, err)
	}

	opf, err := epub.ParseOPF(data, path.Dir(opfRel))
	if err != nil {
		if p.Options.Strict {
			return err
		}
		p.logger.Warn("package document is not well-formed XML", "opf", opfRel, "error", err)
		return nil
	}

	existing := opf.DetectCover(dir)
	if existing == nil && opf.HasID(manifest.CoverID) {
		item := opf.Manifest[manifest.CoverID]
		existing = &epub.CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, DetectionMethod: "manifest-id"}
	}
	if existing == nil {
		return nil
	}

	p.result.ExistingCover = existing
	if p.Options.Strict {
		return fmt.Errorf("%w: %s (%s)", ErrCoverPresent, existing.Href, existing.DetectionMethod)
	}
	p.logger.Warn("book already declares a cover image",
		"href", existing.Href,
		"id", existing.ManifestID,
		"method", existing.DetectionMethod,
	)
	return nil
}
