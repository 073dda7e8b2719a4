package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	workbench "github.com/Skryldev/media-workbench"
	"github.com/Skryldev/media-workbench/pkg/progress"
)

const lockFileName = ".mediawb.lock"

type processOptions struct {
	outDir    string
	preset    string
	cover     string
	format    string
	bitrate   string
	normalize bool
	trimStart string
	trimEnd   string
	artist    string
	album     string
	size      int
	imgFormat string
	quality   int
	keepSize  bool
	noCrop    bool
	quiet     bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process FILE...",
		Short: "Queue files, process both queues and write the results",
		Long: "Audio files are transcoded and tagged; images are resized into cover art.\n" +
			"Each audio result embeds the --cover image, or else the first processed image.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, ctx, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outDir, "out", "o", "", "Output directory (default from config)")
	f.StringVarP(&opts.preset, "preset", "p", "", "Audio preset to apply to every audio file")
	f.StringVar(&opts.cover, "cover", "", "Image file (one of FILE...) to embed in every audio result")
	f.StringVar(&opts.format, "format", "", "Audio output format: mp3, aac, flac, wav, ogg, opus")
	f.StringVar(&opts.bitrate, "bitrate", "", "Audio bitrate, e.g. 192k")
	f.BoolVar(&opts.normalize, "normalize", false, "Apply loudness normalization")
	f.StringVar(&opts.trimStart, "trim-start", "", "Trim audio before this point (seconds or mm:ss)")
	f.StringVar(&opts.trimEnd, "trim-end", "", "Trim audio after this point (seconds or mm:ss)")
	f.StringVar(&opts.artist, "artist", "", "Artist tag for every audio file")
	f.StringVar(&opts.album, "album", "", "Album tag for every audio file")
	f.IntVar(&opts.size, "size", 0, "Square cover size in pixels")
	f.StringVar(&opts.imgFormat, "image-format", "", "Image output format: jpeg, png, webp")
	f.IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100")
	f.BoolVar(&opts.keepSize, "keep-size", false, "Do not resize images")
	f.BoolVar(&opts.noCrop, "no-crop", false, "Do not crop images to a square")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary table")
	return cmd
}

func runProcess(cmd *cobra.Command, ctx *commandContext, opts processOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()

	outDir := strings.TrimSpace(opts.outDir)
	if outDir == "" {
		outDir = cfg.Paths.OutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", outDir, err)
	}

	lock := flock.New(filepath.Join(outDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("another mediawb process is writing to %s", outDir)
	}
	defer func() { _ = lock.Unlock() }()

	log, err := ctx.newLogger(stderr)
	if err != nil {
		return err
	}

	names := &sync.Map{}
	var reporter progress.Reporter = progress.NoopReporter{}
	if !opts.quiet {
		reporter = progressPrinter(stderr, names)
	}

	wb, err := ctx.newWorkbench(log, reporter)
	if err != nil {
		return err
	}
	defer wb.Close()

	files, err := readInputs(args)
	if err != nil {
		return err
	}
	_, addErr := wb.AddFiles(files...)
	for _, e := range multierr.Errors(addErr) {
		fmt.Fprintf(stderr, "skipped: %v\n", e)
	}

	q := wb.Queue()
	for _, kind := range []workbench.MediaKind{workbench.KindAudio, workbench.KindImage} {
		for _, it := range q.Items(kind) {
			names.Store(it.ID, it.Source.Name)
		}
	}
	if err := applyOverrides(ctx, wb, opts); err != nil {
		return err
	}

	summaries, runErr := wb.Process(cmd.Context())
	exported, exportErr := wb.Export(cmd.Context(), outDir)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(resultColumns, resultRows(allItems(wb), exported), isTerminal(out)))

	failed := 0
	for _, s := range summaries {
		failed += s.Failed
		if s.Cancelled {
			runErr = multierr.Append(runErr, errors.New("processing cancelled; unfinished items were not written"))
		}
	}
	if failed > 0 {
		runErr = multierr.Append(runErr, fmt.Errorf("%d item(s) failed", failed))
	}
	return multierr.Append(runErr, exportErr)
}

func readInputs(paths []string) ([]workbench.File, error) {
	files := make([]workbench.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, workbench.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func applyOverrides(ctx *commandContext, wb *workbench.Workbench, opts processOptions) error {
	cfg, _ := ctx.ensureConfig()
	q := wb.Queue()

	if opts.preset != "" {
		preset, ok := cfg.Preset(opts.preset)
		if !ok {
			return fmt.Errorf("unknown preset %q (see 'mediawb presets')", opts.preset)
		}
		q.ApplyPreset(preset)
	}

	coverID := ""
	if opts.cover != "" {
		want := filepath.Base(opts.cover)
		for _, it := range q.Items(workbench.KindImage) {
			if it.Source.Name == want {
				coverID = it.ID
				break
			}
		}
		if coverID == "" {
			return fmt.Errorf("--cover %q is not one of the input images", opts.cover)
		}
	}

	var format workbench.AudioFormat
	if opts.format != "" {
		f, ok := workbench.ParseAudioFormat(opts.format)
		if !ok {
			return fmt.Errorf("unknown audio format %q", opts.format)
		}
		format = f
	}

	for _, it := range q.Items(workbench.KindAudio) {
		err := q.UpdateAudioSettings(it.ID, func(s *workbench.AudioSettings) {
			if format != "" {
				s.Format = format
			}
			if opts.bitrate != "" {
				s.Bitrate = opts.bitrate
			}
			if opts.normalize {
				s.Normalize = true
			}
			if opts.trimStart != "" {
				s.TrimStart = opts.trimStart
			}
			if opts.trimEnd != "" {
				s.TrimEnd = opts.trimEnd
			}
			if opts.artist != "" {
				s.Metadata.Artist = opts.artist
			}
			if opts.album != "" {
				s.Metadata.Album = opts.album
			}
			s.LinkedCoverArtID = coverID
		})
		if err != nil {
			return err
		}
	}

	var imgFormat workbench.ImageFormat
	if opts.imgFormat != "" {
		f, ok := workbench.ParseImageFormat(opts.imgFormat)
		if !ok {
			return fmt.Errorf("unknown image format %q", opts.imgFormat)
		}
		imgFormat = f
	}
	for _, it := range q.Items(workbench.KindImage) {
		err := q.UpdateImageSettings(it.ID, func(s *workbench.ImageSettings) {
			if opts.size > 0 {
				s.TargetWidth, s.TargetHeight = opts.size, opts.size
			}
			if imgFormat != "" {
				s.Format = imgFormat
			}
			if opts.quality > 0 {
				s.Quality = opts.quality
			}
			if opts.keepSize {
				s.KeepOriginalSize = true
			}
			if opts.noCrop {
				s.CropToSquare = false
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// progressPrinter writes one line per lifecycle change, and progress in
// quarter steps while an item is processing.
func progressPrinter(w io.Writer, names *sync.Map) progress.Reporter {
	var mu sync.Mutex
	lastQuarter := map[string]int{}
	return progress.ReporterFunc(func(u progress.Update) {
		mu.Lock()
		defer mu.Unlock()
		name := u.ItemID
		if v, ok := names.Load(u.ItemID); ok {
			name = v.(string)
		}
		switch u.Stage {
		case progress.StageQueued:
			return
		case progress.StageBootstrap:
			fmt.Fprintf(w, "[%s] starting engine\n", u.Kind)
			return
		case progress.StageProcessing:
			q := u.Percent / 25
			if prev, seen := lastQuarter[u.ItemID]; seen && q <= prev {
				return
			}
			lastQuarter[u.ItemID] = q
			fmt.Fprintf(w, "[%s] %-30s %3d%%\n", u.Kind, name, u.Percent)
			return
		}
		delete(lastQuarter, u.ItemID)
		line := fmt.Sprintf("[%s] %-30s %s", u.Kind, name, u.Stage)
		if u.Message != "" {
			line += ": " + u.Message
		}
		fmt.Fprintln(w, line)
	})
}

var resultColumns = []tableColumn{
	{Header: "Kind"},
	{Header: "Source"},
	{Header: "Status", Status: true},
	{Header: "Bytes", AlignRight: true},
	{Header: "Output / Error"},
}

// resultRows lists items with the path each completed one was written to,
// or the error of a failed one.
func resultRows(items []workbench.QueueItem, exported []workbench.ExportedFile) [][]string {
	paths := make(map[string]workbench.ExportedFile, len(exported))
	for _, e := range exported {
		paths[e.ItemID] = e
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		detail, size := "", ""
		switch it.Status {
		case workbench.StatusCompleted:
			if e, ok := paths[it.ID]; ok {
				detail = e.Path
				size = strconv.Itoa(e.Bytes)
			}
		case workbench.StatusError:
			detail = it.Error
		}
		rows = append(rows, []string{string(it.Kind), it.Source.Name, string(it.Status), size, detail})
	}
	return rows
}

func allItems(wb *workbench.Workbench) []workbench.QueueItem {
	q := wb.Queue()
	return append(q.Items(workbench.KindAudio), q.Items(workbench.KindImage)...)
}
