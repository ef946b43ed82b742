package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuanying/append-cover-epub/internal/manifest"
	"github.com/yuanying/append-cover-epub/internal/repack"
)

const (
	defaultMaxImageWidth = 0
	defaultScratchParent = "."
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append-cover-epub <epub-path> <image-path> <media-subtype>",
		Short: "Add a cover image to an EPUB in place",
		Long: `append-cover-epub copies an image into an EPUB as its cover.

The image is stored as cover.<media-subtype> next to the package document,
declared as the first manifest item with media type image/<media-subtype>,
and the book is re-archived over the original file.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}

			opts.Logger.Info("appending cover", "epub", opts.EPUBPath, "image", opts.ImagePath, "subtype", opts.Subtype)
			res, err := repack.NewPipeline(opts).Run()
			if err != nil {
				return fmt.Errorf("append cover failed at stage %s: %w", res.Stage, err)
			}
			for _, name := range res.SkippedEntries {
				opts.Logger.Warn("entry dropped from EPUB", "name", name)
			}

			opts.Logger.Info("done", "epub", opts.EPUBPath, "cover", res.CoverPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolP("keep-tmp", "k", false, "Keep the scratch directory after the run")
	flags.String("tmp-parent", defaultScratchParent, "Directory in which the scratch directory is created")
	flags.String("opf", "", "Package document path inside the EPUB (default: from META-INF/container.xml)")
	flags.String("edit-mode", string(manifest.ModeLine), "Manifest edit mode: line|xml")
	flags.Int("max-width", defaultMaxImageWidth, "Downscale covers wider than this many pixels (0 keeps the image as is)")
	flags.Int("quality", repack.DefaultJPEGQuality, fmt.Sprintf("JPEG quality for a downscaled cover (%d-%d)", repack.MinJPEGQuality, repack.MaxJPEGQuality))
	flags.Bool("strict", false, "Treat warnings as errors")
	flags.String("log-level", defaultLogLevel, "Log level: debug|info|warn|error")
	flags.String("log-format", defaultLogFormat, "Log format: text|json")
	flags.BoolP("verbose", "v", false, "Enable verbose logs (same as --log-level=debug)")

	return cmd
}

func readCLIOptions(cmd *cobra.Command, args []string) (repack.Options, error) {
	if len(args) != 3 {
		return repack.Options{}, fmt.Errorf("expected <epub-path> <image-path> <media-subtype>, got %d arguments", len(args))
	}
	flags := cmd.Flags()

	keep, _ := flags.GetBool("keep-tmp")
	scratchParent, _ := flags.GetString("tmp-parent")
	opfPath, _ := flags.GetString("opf")
	editModeFlag, _ := flags.GetString("edit-mode")
	maxWidth, _ := flags.GetInt("max-width")
	quality, _ := flags.GetInt("quality")
	strict, _ := flags.GetBool("strict")
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")

	if err := repack.ValidateSubtype(args[2]); err != nil {
		return repack.Options{}, fmt.Errorf("<media-subtype>: %w", err)
	}
	editMode, err := manifest.ParseMode(editModeFlag)
	if err != nil {
		return repack.Options{}, fmt.Errorf("--edit-mode: %w", err)
	}
	if quality < repack.MinJPEGQuality || quality > repack.MaxJPEGQuality {
		return repack.Options{}, fmt.Errorf("--quality must be between %d and %d", repack.MinJPEGQuality, repack.MaxJPEGQuality)
	}
	if maxWidth < 0 {
		return repack.Options{}, fmt.Errorf("--max-width must not be negative")
	}
	if scratchParent == "" {
		return repack.Options{}, fmt.Errorf("--tmp-parent must not be empty")
	}
	if !isValidLogLevel(logLevel) {
		return repack.Options{}, fmt.Errorf("--log-level must be one of: debug, info, warn, error")
	}
	if !isValidLogFormat(logFormat) {
		return repack.Options{}, fmt.Errorf("--log-format must be one of: text, json")
	}
	if verbose {
		logLevel = "debug"
	}

	return repack.Options{
		EPUBPath:      args[0],
		ImagePath:     args[1],
		Subtype:       args[2],
		KeepScratch:   keep,
		ScratchParent: scratchParent,
		OPFPath:       opfPath,
		EditMode:      editMode,
		MaxImageWidth: maxWidth,
		JPEGQuality:   quality,
		Strict:        strict,
		Logger:        buildLogger(cmd.ErrOrStderr(), logLevel, logFormat),
	}, nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	default:
		return false
	}
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: slogLevel}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
