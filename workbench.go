package workbench

import (
	"context"

	"github.com/Skryldev/media-workbench/application/pipeline"
	"github.com/Skryldev/media-workbench/application/queue"
	"github.com/Skryldev/media-workbench/application/usecase"
	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/infrastructure/ffmpeg"
	"github.com/Skryldev/media-workbench/infrastructure/storage"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/progress"
	"github.com/Skryldev/media-workbench/pkg/retry"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	File           = model.File
	MediaKind      = model.MediaKind
	Status         = model.Status
	QueueItem      = model.QueueItem
	AudioSettings  = model.AudioSettings
	ImageSettings  = model.ImageSettings
	AudioFormat    = model.AudioFormat
	ImageFormat    = model.ImageFormat
	Metadata       = model.Metadata
	Preset         = model.Preset
	EngineState    = model.EngineState
	AudioMetadata  = model.AudioMetadata
	BatchSummary   = queue.BatchSummary
	ExportedFile   = usecase.ExportedFile
	Loudness       = pipeline.Loudness
	ProgressUpdate = progress.Update
	ProgressStage  = progress.Stage
)

// Re-export constants
const (
	KindAudio = model.KindAudio
	KindImage = model.KindImage

	StatusPending    = model.StatusPending
	StatusProcessing = model.StatusProcessing
	StatusCompleted  = model.StatusCompleted
	StatusError      = model.StatusError

	AudioMP3  = model.AudioMP3
	AudioAAC  = model.AudioAAC
	AudioFLAC = model.AudioFLAC
	AudioWAV  = model.AudioWAV
	AudioOGG  = model.AudioOGG
	AudioOpus = model.AudioOpus

	ImageJPEG = model.ImageJPEG
	ImagePNG  = model.ImagePNG
	ImageWebP = model.ImageWebP
)

// Re-export queue errors
var (
	ErrRunActive       = queue.ErrRunActive
	ErrItemProcessing  = queue.ErrItemProcessing
	ErrItemNotFound    = queue.ErrItemNotFound
	ErrInvalidCoverArt = queue.ErrInvalidCoverArt
)

// Re-export format parsing
var (
	ParseAudioFormat = model.ParseAudioFormat
	ParseImageFormat = model.ParseImageFormat
)

// Config holds top-level configuration for the workbench
type Config struct {
	// FFmpegPath is the path to ffmpeg binary (auto-detected if empty)
	FFmpegPath string

	// FFprobePath is the path to ffprobe binary (auto-detected if empty)
	FFprobePath string

	// ScratchDir holds per-job working directories (system temp if empty)
	ScratchDir string

	// Logger is an optional custom logger. Uses production zap if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// ProgressCh is an optional channel for receiving progress updates.
	// Updates are dropped rather than blocking when it is full.
	ProgressCh chan<- ProgressUpdate

	// Reporter receives progress updates alongside ProgressCh.
	Reporter progress.Reporter

	// Loudness overrides the normalization targets
	Loudness Loudness

	// DefaultAudio and DefaultImage seed new queue items
	DefaultAudio AudioSettings
	DefaultImage ImageSettings

	// RetryConfig overrides engine bootstrap retry behavior
	RetryConfig *retry.Config
}

// Workbench is the main entry point
type Workbench struct {
	service *usecase.Workbench
	log     *logger.Logger
}

// New creates a Workbench with the given configuration. The codec runtime
// binaries are located now; they are initialized on first use.
func New(cfg Config) (*Workbench, error) {
	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, err
		}
	}

	exec, err := ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	reporters := progress.NewMultiReporter()
	if cfg.ProgressCh != nil {
		reporters.Add(progress.NewChannelReporter(cfg.ProgressCh))
	}
	if cfg.Reporter != nil {
		reporters.Add(cfg.Reporter)
	}

	retryCfg := retry.Config{MaxAttempts: 1}
	if cfg.RetryConfig != nil {
		retryCfg = *cfg.RetryConfig
	}

	svc, err := usecase.NewWorkbench(usecase.Config{
		Executor:     exec,
		Storage:      storage.NewLocalStorage(cfg.ScratchDir),
		Reporter:     reporters,
		Logger:       log,
		Loudness:     cfg.Loudness,
		DefaultAudio: cfg.DefaultAudio,
		DefaultImage: cfg.DefaultImage,
		RetryConfig:  retryCfg,
	})
	if err != nil {
		return nil, err
	}

	return &Workbench{
		service: svc,
		log:     log,
	}, nil
}

// Queue returns the queue controller for adding, editing and inspecting items.
func (w *Workbench) Queue() *queue.Controller {
	return w.service.Queue()
}

// AddFiles routes files to the audio or image queue by content.
func (w *Workbench) AddFiles(files ...File) ([]string, error) {
	return w.service.Queue().AddFiles(files...)
}

// Process runs the image queue and then the audio queue.
func (w *Workbench) Process(ctx context.Context) ([]BatchSummary, error) {
	return w.service.Process(ctx)
}

// RunAll runs both queues concurrently.
func (w *Workbench) RunAll(ctx context.Context) ([]BatchSummary, error) {
	return w.service.RunAll(ctx)
}

// Cancel stops active runs on both queues.
func (w *Workbench) Cancel() {
	w.service.Cancel()
}

// Export writes completed results into dir.
func (w *Workbench) Export(ctx context.Context, dir string) ([]ExportedFile, error) {
	return w.service.Export(ctx, dir)
}

// ProbeAudio returns metadata about an audio file without processing it
func (w *Workbench) ProbeAudio(ctx context.Context, file File) (*AudioMetadata, error) {
	return w.service.Probe(ctx, file)
}

// EngineVersion reports the codec runtime version once loaded.
func (w *Workbench) EngineVersion() string {
	return w.service.EngineVersion()
}

// Close tears down the engines and flushes the logger
func (w *Workbench) Close() error {
	err := w.service.Close()
	_ = w.log.Sync()
	return err
}
