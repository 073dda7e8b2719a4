package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/domain/ports"
	"github.com/Skryldev/media-workbench/infrastructure/ffmpeg"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/progress"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Fractions of overall progress reached at the end of each stage.
const (
	probedFraction  = 0.05
	encodedFraction = 0.90
	taggedFraction  = 0.95
)

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*k?$`)

// codecs maps output formats to the ffmpeg encoder producing them.
var codecs = map[model.AudioFormat]string{
	model.AudioMP3:  "libmp3lame",
	model.AudioAAC:  "aac",
	model.AudioFLAC: "flac",
	model.AudioWAV:  "pcm_s16le",
	model.AudioOGG:  "libvorbis",
	model.AudioOpus: "libopus",
}

// Loudness configures the single-pass EBU R128 normalization.
type Loudness struct {
	Target   float64 // LUFS
	TruePeak float64 // dBTP
	Range    float64 // LU
}

// DefaultLoudness targets common streaming-platform levels.
func DefaultLoudness() Loudness {
	return Loudness{Target: -16, TruePeak: -1.5, Range: 11}
}

// Config holds the audio engine's collaborators.
type Config struct {
	Executor ports.FFmpegExecutor
	Storage  ports.StorageProvider
	Taggers  []ports.Tagger
	Loudness Loudness
	Logger   *logger.Logger
}

// Engine is the audio transform engine. It drives the ffmpeg runtime one
// job at a time per caller and can abort jobs in flight.
type Engine struct {
	executor ports.FFmpegExecutor
	storage  ports.StorageProvider
	taggers  []ports.Tagger
	loudness Loudness
	log      *logger.Logger

	mu       sync.Mutex
	encoders map[string]struct{}
	version  string
	nextJob  int
	jobs     map[int]context.CancelFunc
}

// NewEngine creates an engine; Init must succeed before Transform.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("FFmpegExecutor is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("StorageProvider is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	loud := cfg.Loudness
	if loud == (Loudness{}) {
		loud = DefaultLoudness()
	}
	return &Engine{
		executor: cfg.Executor,
		storage:  cfg.Storage,
		taggers:  cfg.Taggers,
		loudness: loud,
		log:      log,
		jobs:     make(map[int]context.CancelFunc),
	}, nil
}

// Init verifies the codec runtime and records the encoders it offers.
func (e *Engine) Init(ctx context.Context) error {
	version, err := e.executor.Version(ctx)
	if err != nil {
		return err
	}
	names, err := e.executor.Encoders(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	e.mu.Lock()
	e.version = version
	e.encoders = set
	e.mu.Unlock()

	e.log.Info("codec runtime ready",
		zap.String("version", version),
		zap.Int("encoders", len(set)),
	)
	return nil
}

// Teardown aborts running jobs and forgets the runtime capabilities.
func (e *Engine) Teardown() error {
	e.Cancel()
	e.mu.Lock()
	e.encoders = nil
	e.version = ""
	e.mu.Unlock()
	return nil
}

// Version returns the runtime version recorded by Init.
func (e *Engine) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Cancel aborts every transform in flight.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cancel := range e.jobs {
		cancel()
	}
}

func (e *Engine) register(ctx context.Context) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoders == nil {
		return nil, nil, pkgerrors.NewBootstrapError("audio", fmt.Errorf("engine not loaded"))
	}
	jobCtx, cancel := context.WithCancel(ctx)
	id := e.nextJob
	e.nextJob++
	e.jobs[id] = cancel
	return jobCtx, func() {
		e.mu.Lock()
		delete(e.jobs, id)
		e.mu.Unlock()
		cancel()
	}, nil
}

func (e *Engine) hasEncoder(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.encoders[name]
	return ok
}

// Job holds the state of a single transform
type Job struct {
	ID         string
	File       model.File
	Settings   model.AudioSettings
	Cover      *model.CoverArt
	WorkDir    string
	InputPath  string
	CoverPath  string
	OutputPath string
	Window     TrimWindow
	Input      *model.AudioMetadata
	report     func(float64)
	log        *logger.Logger
}

// Transform converts file per settings, embedding cover when the target
// container supports it. On any failure no output is returned.
func (e *Engine) Transform(ctx context.Context, file model.File, settings model.AudioSettings, cover *model.CoverArt, onProgress func(float64)) (out []byte, err error) {
	jobCtx, done, err := e.register(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	job := &Job{
		ID:       file.Name,
		File:     file,
		Settings: settings,
		Cover:    cover,
		report:   progress.Monotonic(onProgress),
		log:      e.log.With(zap.String("file", file.Name), zap.String("format", string(settings.Format))),
	}

	if err := e.validate(job); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err = e.run(jobCtx, job)
	if err != nil {
		if _, ok := pkgerrors.As[*pkgerrors.CancelledError](err); !ok && jobCtx.Err() != nil {
			err = pkgerrors.NewCancelledError("audio transform cancelled", err)
		}
		if pkgerrors.IsCancelled(err) {
			job.log.Info("audio transform cancelled")
		} else {
			job.log.Warn("audio transform failed", zap.Error(err))
		}
		return nil, err
	}

	job.report(1)
	job.log.Info("audio transform completed",
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

func (e *Engine) validate(job *Job) error {
	s := job.Settings
	if !s.Format.Valid() {
		return pkgerrors.NewEncodeError(string(s.Format), "unknown output format", nil)
	}
	if !s.Format.Lossless() && !bitratePattern.MatchString(strings.TrimSpace(s.Bitrate)) {
		return pkgerrors.NewEncodeError(string(s.Format), fmt.Sprintf("invalid bitrate %q", s.Bitrate), nil)
	}
	if enc := codecs[s.Format]; !e.hasEncoder(enc) {
		return pkgerrors.NewEncodeError(string(s.Format), fmt.Sprintf("encoder %s not available in codec runtime", enc), nil)
	}
	if len(job.File.Data) == 0 {
		return pkgerrors.NewDecodeError(job.File.Name, fmt.Errorf("empty file"))
	}
	return nil
}

func (e *Engine) run(ctx context.Context, job *Job) (out []byte, err error) {
	dir, err := e.storage.TempDir(ctx, "audio-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	job.WorkDir = dir
	defer func() {
		if cleanupErr := e.storage.RemoveAll(context.WithoutCancel(ctx), dir); cleanupErr != nil {
			if err != nil {
				err = multierr.Append(err, cleanupErr)
				return
			}
			job.log.Warn("failed to remove scratch dir", zap.String("dir", dir), zap.Error(cleanupErr))
		}
	}()

	job.InputPath = filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(job.File.Name)))
	if err := e.storage.WriteFile(ctx, job.InputPath, job.File.Data); err != nil {
		return nil, fmt.Errorf("stage input: %w", err)
	}
	job.OutputPath = filepath.Join(dir, "output."+job.Settings.Format.Extension())

	meta, err := e.probe(ctx, job.InputPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewUnsupportedFormatError(job.File.Name, "source is not decodable audio", err)
	}
	job.Input = meta
	job.report(probedFraction)

	window, err := ResolveTrim(job.Settings.TrimStart, job.Settings.TrimEnd, meta.Duration)
	if err != nil {
		return nil, pkgerrors.NewEncodeError(string(job.Settings.Format), err.Error(), err)
	}
	job.Window = window

	if err := e.stageCover(ctx, job); err != nil {
		return nil, err
	}

	args := e.buildArgs(job)
	expected := window.Length(meta.Duration)
	err = e.executor.Execute(ctx, args, func(s ports.ProgressSample) {
		if s.Done {
			job.report(encodedFraction)
			return
		}
		job.report(encodeFraction(s.OutTime, expected))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewEncodeError(string(job.Settings.Format), "codec runtime rejected the job", err)
	}
	job.report(encodedFraction)

	if err := e.tag(ctx, job); err != nil {
		return nil, err
	}
	job.report(taggedFraction)

	out, err = e.storage.ReadFile(ctx, job.OutputPath)
	if err != nil {
		return nil, pkgerrors.NewEncodeError(string(job.Settings.Format), "codec runtime produced no output", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// stageCover writes the cover to disk when ffmpeg itself must mux it.
func (e *Engine) stageCover(ctx context.Context, job *Job) error {
	if !muxesCover(job) {
		return nil
	}
	ext := ".jpg"
	if job.Cover.MimeType == "image/png" {
		ext = ".png"
	}
	job.CoverPath = filepath.Join(job.WorkDir, "cover"+ext)
	if err := e.storage.WriteFile(ctx, job.CoverPath, job.Cover.Data); err != nil {
		return fmt.Errorf("stage cover: %w", err)
	}
	return nil
}

// muxesCover reports whether the cover goes in as an attached-picture
// stream. MP4 only accepts JPEG or PNG pictures.
func muxesCover(job *Job) bool {
	if job.Cover == nil || len(job.Cover.Data) == 0 || job.Settings.Format != model.AudioAAC {
		return false
	}
	return job.Cover.MimeType == "image/jpeg" || job.Cover.MimeType == "image/png"
}

func (e *Engine) buildArgs(job *Job) []string {
	s := job.Settings
	args := []string{"-y", "-i", job.InputPath}
	if job.CoverPath != "" {
		args = append(args, "-i", job.CoverPath, "-map", "0:a:0", "-map", "1:v:0",
			"-c:v", "copy", "-disposition:v:0", "attached_pic")
	} else {
		args = append(args, "-map", "0:a:0", "-vn")
	}

	fb := ffmpeg.NewFilterChainBuilder()
	fb.AddTrim(job.Window.Start, job.Window.End)
	if s.Normalize {
		fb.AddLoudnorm(e.loudness.Target, e.loudness.TruePeak, e.loudness.Range)
	}
	if s.Format == model.AudioOpus {
		fb.AddResample(48000)
	}
	if !fb.IsEmpty() {
		args = append(args, "-af", fb.Build())
	}

	args = append(args, "-c:a", codecs[s.Format])
	if !s.Format.Lossless() {
		args = append(args, "-b:a", strings.TrimSpace(s.Bitrate))
	}

	tags := [][2]string{
		{"title", s.Metadata.Title},
		{"artist", s.Metadata.Artist},
		{"album", s.Metadata.Album},
	}
	for _, kv := range tags {
		if kv[1] != "" {
			args = append(args, "-metadata", kv[0]+"="+kv[1])
		}
	}

	return append(args, job.OutputPath)
}

func (e *Engine) tag(ctx context.Context, job *Job) error {
	for _, t := range e.taggers {
		if !t.Supports(job.Settings.Format) {
			continue
		}
		if err := t.Tag(ctx, job.OutputPath, job.Settings.Metadata, job.Cover); err != nil {
			return pkgerrors.NewEncodeError(string(job.Settings.Format), "failed to write tags", err)
		}
		return nil
	}
	if job.Cover != nil && job.CoverPath == "" {
		job.log.Warn("container cannot carry cover art, skipping")
	}
	return nil
}

// encodeFraction maps encoded media time onto the encode stage's share of
// overall progress. With an unknown length it creeps toward the stage end.
func encodeFraction(out, expected time.Duration) float64 {
	span := encodedFraction - probedFraction
	if expected <= 0 {
		secs := out.Seconds()
		return probedFraction + span*(1-1/(1+secs/60))
	}
	ratio := float64(out) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	return probedFraction + span*ratio
}
