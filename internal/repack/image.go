package repack

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/copy"
)

// imageInfo is what decoding the image header reveals.
type imageInfo struct {
	Format string
	Width  int
	Height int
}

// probeImage reads only the image header.
func probeImage(path string) (imageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return imageInfo{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return imageInfo{}, err
	}
	return imageInfo{Format: strings.ToLower(format), Width: cfg.Width, Height: cfg.Height}, nil
}

// normalizeFormat maps subtype aliases onto decoder format names.
func normalizeFormat(subtype string) string {
	switch s := strings.ToLower(subtype); s {
	case "jpg", "pjpeg":
		return "jpeg"
	case "x-ms-bmp":
		return "bmp"
	default:
		return s
	}
}

// placeCover writes the cover image to dst, overwriting it. The image is
// copied byte for byte unless MaxImageWidth asks for a narrower one.
func (p *Pipeline) placeCover(src, dst string) error {
	subtype := p.Options.Subtype
	if strings.EqualFold(subtype, "jpg") {
		p.logger.Warn("image/jpg is not a registered media type; readers expect image/jpeg", "subtype", subtype)
	}

	info, probeErr := probeImage(src)
	switch {
	case probeErr != nil:
		p.logger.Warn("could not read image header; copying as is", "image", src, "error", probeErr)
	case info.Format != normalizeFormat(subtype):
		if p.Options.Strict {
			return fmt.Errorf("%w: %s is %s, subtype is %s", ErrSubtypeMismatch, src, info.Format, subtype)
		}
		p.logger.Warn("image format does not match media subtype", "image", src, "format", info.Format, "subtype", subtype)
	}

	if probeErr == nil && p.Options.MaxImageWidth > 0 && info.Width > p.Options.MaxImageWidth {
		err := p.resizeCover(src, dst)
		if err == nil {
			return nil
		}
		if !errors.Is(err, imaging.ErrUnsupportedFormat) {
			return err
		}
		p.logger.Warn("cannot re-encode cover for this subtype; copying as is", "subtype", subtype)
	}

	if err := copy.Copy(src, dst); err != nil {
		return fmt.Errorf("%w: copy %s to %s: %w", ErrImage, src, dst, err)
	}
	p.logger.Info("copied cover image", "image", src, "dest", dst)
	return nil
}

func (p *Pipeline) resizeCover(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrImage, src, err)
	}

	resized := imaging.Resize(img, p.Options.MaxImageWidth, 0, imaging.Lanczos)
	if err := imaging.Save(resized, dst, imaging.JPEGQuality(p.Options.JPEGQuality)); err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return err
		}
		return fmt.Errorf("%w: encode %s: %w", ErrImage, dst, err)
	}

	p.logger.Info("resized cover image",
		"image", src,
		"dest", dst,
		"width", resized.Bounds().Dx(),
		"height", resized.Bounds().Dy(),
	)
	return nil
}
