package ports

import (
	"context"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
)

// AudioTransformer is the audio engine contract consumed by the queue.
type AudioTransformer interface {
	// Transform converts file according to settings. onProgress receives
	// non-decreasing values in [0,1] ending at 1 on success.
	Transform(ctx context.Context, file model.File, settings model.AudioSettings, cover *model.CoverArt, onProgress func(float64)) ([]byte, error)

	// Cancel aborts the transform in flight, if any.
	Cancel()
}

// ImageTransformer is the image engine contract consumed by the queue.
type ImageTransformer interface {
	Transform(ctx context.Context, file model.File, settings model.ImageSettings) ([]byte, error)
}

// EngineLoader is the bootstrap contract of an engine.
type EngineLoader interface {
	Load(ctx context.Context) error
	Loaded() bool
	Loading() bool
}

// ProgressSample is one block of ffmpeg's -progress output.
type ProgressSample struct {
	OutTime time.Duration
	// Done is set on the final block, once the encoder has flushed.
	Done bool
}

// FFmpegExecutor is the abstraction for FFmpeg command execution
type FFmpegExecutor interface {
	// Execute runs an ffmpeg command with the given arguments. When
	// onProgress is non-nil the executor requests a progress stream and
	// delivers each parsed block.
	Execute(ctx context.Context, args []string, onProgress func(ProgressSample)) error

	// Probe runs ffprobe and returns JSON output
	Probe(ctx context.Context, inputPath string) ([]byte, error)

	// Version returns the first line of `ffmpeg -version`.
	Version(ctx context.Context) (string, error)

	// Encoders lists the audio encoder names the runtime was built with.
	Encoders(ctx context.Context) ([]string, error)
}

// StorageProvider abstracts the scratch area used to hand bytes to the codec runtime.
type StorageProvider interface {
	// TempDir creates a private scratch directory and returns its path
	TempDir(ctx context.Context, pattern string) (string, error)

	// WriteFile stores data at path
	WriteFile(ctx context.Context, path string, data []byte) error

	// ReadFile returns the bytes stored at path
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// RemoveAll deletes path and everything below it
	RemoveAll(ctx context.Context, path string) error
}

// Tagger post-processes an encoded file to write tags and cover art.
type Tagger interface {
	// Supports reports whether the tagger handles the format.
	Supports(format model.AudioFormat) bool

	// Tag rewrites the file at path in place.
	Tag(ctx context.Context, path string, meta model.Metadata, cover *model.CoverArt) error
}
