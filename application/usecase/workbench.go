package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Skryldev/media-workbench/application/engine"
	"github.com/Skryldev/media-workbench/application/imageengine"
	"github.com/Skryldev/media-workbench/application/pipeline"
	"github.com/Skryldev/media-workbench/application/queue"
	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/domain/ports"
	"github.com/Skryldev/media-workbench/infrastructure/tagging"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/progress"
	"github.com/Skryldev/media-workbench/pkg/retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Workbench composes both engines, their bootstrap handles and the queue
// controller into one explicitly owned unit.
type Workbench struct {
	audio       *pipeline.Engine
	image       *imageengine.Engine
	audioHandle *engine.Handle
	imageHandle *engine.Handle
	queue       *queue.Controller
	storage     ports.StorageProvider
	log         *logger.Logger

	mu      sync.Mutex
	nextRun uint64
	runs    map[uint64]context.CancelFunc
}

// Config holds Workbench configuration
type Config struct {
	Executor ports.FFmpegExecutor
	Storage  ports.StorageProvider
	Reporter progress.Reporter
	Logger   *logger.Logger

	Loudness     pipeline.Loudness
	DefaultAudio model.AudioSettings
	DefaultImage model.ImageSettings
	RetryConfig  retry.Config

	// Taggers write container tags after encoding. Defaults to ID3v2 for mp3
	// and Vorbis comments for flac.
	Taggers []ports.Tagger
}

// NewWorkbench creates a Workbench. Engines are not initialized until the
// first batch run or probe needs them.
func NewWorkbench(cfg Config) (*Workbench, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("FFmpegExecutor is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("StorageProvider is required")
	}

	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	taggers := cfg.Taggers
	if taggers == nil {
		taggers = []ports.Tagger{tagging.ID3Tagger{}, tagging.FLACTagger{}}
	}

	audio, err := pipeline.NewEngine(pipeline.Config{
		Executor: cfg.Executor,
		Storage:  cfg.Storage,
		Taggers:  taggers,
		Loudness: cfg.Loudness,
		Logger:   log.Named("audio"),
	})
	if err != nil {
		return nil, err
	}
	image := imageengine.New(log.Named("image"))

	audioHandle := engine.NewHandle(engine.Config{
		Name:     string(model.KindAudio),
		Init:     audio.Init,
		Teardown: audio.Teardown,
		Retry:    cfg.RetryConfig,
		Logger:   log,
	})
	imageHandle := engine.NewHandle(engine.Config{
		Name:   string(model.KindImage),
		Init:   image.Init,
		Retry:  cfg.RetryConfig,
		Logger: log,
	})

	ctrl, err := queue.New(queue.Config{
		AudioEngine:  audio,
		ImageEngine:  image,
		AudioLoader:  audioHandle,
		ImageLoader:  imageHandle,
		DefaultAudio: cfg.DefaultAudio,
		DefaultImage: cfg.DefaultImage,
		Reporter:     reporter,
		Logger:       log.Named("queue"),
	})
	if err != nil {
		return nil, err
	}

	return &Workbench{
		audio:       audio,
		image:       image,
		audioHandle: audioHandle,
		imageHandle: imageHandle,
		queue:       ctrl,
		storage:     cfg.Storage,
		log:         log,
		runs:        make(map[uint64]context.CancelFunc),
	}, nil
}

// Queue exposes the queue controller, the only mutation surface for items.
func (w *Workbench) Queue() *queue.Controller {
	return w.queue
}

// track derives a context that Cancel also cancels. The returned func
// releases it.
func (w *Workbench) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	id := w.nextRun
	w.nextRun++
	w.runs[id] = cancel
	w.mu.Unlock()
	return ctx, func() {
		w.mu.Lock()
		delete(w.runs, id)
		w.mu.Unlock()
		cancel()
	}
}

// RunAll runs the audio and image queues concurrently. Cover lookups see
// whatever images have completed by the time each audio item starts.
func (w *Workbench) RunAll(ctx context.Context) ([]queue.BatchSummary, error) {
	ctx, done := w.track(ctx)
	defer done()
	kinds := []model.MediaKind{model.KindImage, model.KindAudio}
	summaries := make([]queue.BatchSummary, len(kinds))
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summaries[i], errs[i] = w.queue.RunBatch(ctx, kind)
		}()
	}
	wg.Wait()

	return summaries, multierr.Combine(errs...)
}

// Process runs the image queue to completion and then the audio queue, so
// every audio item can pick up a finished cover. An image bootstrap failure
// does not stop the audio run.
func (w *Workbench) Process(ctx context.Context) ([]queue.BatchSummary, error) {
	ctx, done := w.track(ctx)
	defer done()
	var errs error
	summaries := make([]queue.BatchSummary, 0, 2)
	for _, kind := range []model.MediaKind{model.KindImage, model.KindAudio} {
		s, err := w.queue.RunBatch(ctx, kind)
		summaries = append(summaries, s)
		if err != nil {
			errs = multierr.Append(errs, err)
			if !pkgerrors.IsBootstrap(err) {
				break
			}
		}
		if s.Cancelled {
			break
		}
	}
	return summaries, errs
}

// Cancel stops active runs on both queues. A Process call between its image
// and audio runs stops before starting the next one.
func (w *Workbench) Cancel() {
	w.mu.Lock()
	for _, cancel := range w.runs {
		cancel()
	}
	w.mu.Unlock()
	w.queue.Cancel(model.KindImage)
	w.queue.Cancel(model.KindAudio)
}

// Probe loads the audio engine if needed and returns the source's metadata.
func (w *Workbench) Probe(ctx context.Context, file model.File) (*model.AudioMetadata, error) {
	if err := w.audioHandle.Load(ctx); err != nil {
		return nil, err
	}
	return w.audio.Probe(ctx, file)
}

// EngineVersion returns the codec runtime version once the audio engine is loaded.
func (w *Workbench) EngineVersion() string {
	return w.audio.Version()
}

// ExportedFile names one result written by Export.
type ExportedFile struct {
	ItemID string
	Path   string
	Bytes  int
}

// Export writes every completed item's result into dir under its suggested
// file name. Clashing names get a numeric suffix.
func (w *Workbench) Export(ctx context.Context, dir string) ([]ExportedFile, error) {
	var out []ExportedFile
	taken := make(map[string]struct{})
	for _, kind := range []model.MediaKind{model.KindAudio, model.KindImage} {
		for _, item := range w.queue.Items(kind) {
			if item.Status != model.StatusCompleted {
				continue
			}
			name := uniqueName(item.SuggestedFilename(), taken)
			path := filepath.Join(dir, name)
			if err := w.storage.WriteFile(ctx, path, item.Result); err != nil {
				return out, fmt.Errorf("export %s: %w", item.Source.Name, err)
			}
			out = append(out, ExportedFile{ItemID: item.ID, Path: path, Bytes: len(item.Result)})
			w.log.ForItem(string(kind), item.ID).Debug("result exported", zap.String("path", path))
		}
	}
	return out, nil
}

func uniqueName(name string, taken map[string]struct{}) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 2; ; n++ {
		if _, clash := taken[candidate]; !clash {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = stem + "-" + strconv.Itoa(n) + ext
	}
}

// Close tears down both engines.
func (w *Workbench) Close() error {
	w.Cancel()
	return multierr.Combine(
		w.audioHandle.Teardown(),
		w.imageHandle.Teardown(),
	)
}
