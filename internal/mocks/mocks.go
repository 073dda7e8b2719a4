package mocks

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/domain/ports"
)

// MockFFmpegExecutor is a test double for ports.FFmpegExecutor. By default
// Execute writes a fake encoding of its arguments to the output path (the
// last argument) and reports progress in four steps.
type MockFFmpegExecutor struct {
	ExecuteFunc  func(ctx context.Context, args []string, onProgress func(ports.ProgressSample)) error
	ProbeFunc    func(ctx context.Context, inputPath string) ([]byte, error)
	VersionFunc  func(ctx context.Context) (string, error)
	EncodersList []string

	mu           sync.Mutex
	ExecutedArgs [][]string
}

func (m *MockFFmpegExecutor) Execute(ctx context.Context, args []string, onProgress func(ports.ProgressSample)) error {
	m.mu.Lock()
	m.ExecutedArgs = append(m.ExecutedArgs, args)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args, onProgress)
	}
	return FakeEncode(args, onProgress, 120*time.Second)
}

// FakeEncode writes "encoded:<args>" to the output path.
func FakeEncode(args []string, onProgress func(ports.ProgressSample), length time.Duration) error {
	if onProgress != nil {
		for i := 1; i <= 4; i++ {
			onProgress(ports.ProgressSample{OutTime: length * time.Duration(i) / 4, Done: i == 4})
		}
	}
	out := args[len(args)-1]
	return os.WriteFile(out, []byte("encoded:"+strings.Join(args, " ")), 0o600)
}

// LastArgs returns the arguments of the most recent Execute call.
func (m *MockFFmpegExecutor) LastArgs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ExecutedArgs) == 0 {
		return nil
	}
	return m.ExecutedArgs[len(m.ExecutedArgs)-1]
}

func (m *MockFFmpegExecutor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, inputPath)
	}
	return ProbeResponse(120.5), nil
}

func (m *MockFFmpegExecutor) Version(ctx context.Context) (string, error) {
	if m.VersionFunc != nil {
		return m.VersionFunc(ctx)
	}
	return "ffmpeg version 7.1-test", nil
}

func (m *MockFFmpegExecutor) Encoders(context.Context) ([]string, error) {
	if m.EncodersList != nil {
		return m.EncodersList, nil
	}
	return []string{"libmp3lame", "aac", "flac", "pcm_s16le", "libvorbis", "libopus"}, nil
}

// ProbeResponse builds ffprobe JSON for a stereo WAV of the given length.
func ProbeResponse(seconds float64) []byte {
	resp := map[string]interface{}{
		"format": map[string]interface{}{
			"duration":    strconv.FormatFloat(seconds, 'f', -1, 64),
			"bit_rate":    "1411200",
			"size":        "2880000",
			"format_name": "wav",
		},
		"streams": []map[string]interface{}{
			{
				"codec_name":  "pcm_s16le",
				"codec_type":  "audio",
				"sample_rate": "44100",
				"channels":    2,
				"bit_rate":    "1411200",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

// MockAudioEngine is a test double for ports.AudioTransformer.
type MockAudioEngine struct {
	TransformFunc func(ctx context.Context, file model.File, settings model.AudioSettings, cover *model.CoverArt, onProgress func(float64)) ([]byte, error)

	mu       sync.Mutex
	Calls    []AudioCall
	Cancels  int
	cancelFn context.CancelFunc
}

// AudioCall records one Transform invocation.
type AudioCall struct {
	File     model.File
	Settings model.AudioSettings
	Cover    *model.CoverArt
}

func (m *MockAudioEngine) Transform(ctx context.Context, file model.File, settings model.AudioSettings, cover *model.CoverArt, onProgress func(float64)) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.Calls = append(m.Calls, AudioCall{File: file, Settings: settings, Cover: cover})
	m.cancelFn = cancel
	m.mu.Unlock()

	if m.TransformFunc != nil {
		return m.TransformFunc(ctx, file, settings, cover, onProgress)
	}
	if onProgress != nil {
		onProgress(0.5)
		onProgress(1)
	}
	return []byte("audio:" + file.Name), nil
}

func (m *MockAudioEngine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancels++
	if m.cancelFn != nil {
		m.cancelFn()
	}
}

// CallCount returns the number of Transform invocations.
func (m *MockAudioEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Call returns the i-th Transform invocation.
func (m *MockAudioEngine) Call(i int) AudioCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[i]
}

// MockImageEngine is a test double for ports.ImageTransformer.
type MockImageEngine struct {
	TransformFunc func(ctx context.Context, file model.File, settings model.ImageSettings) ([]byte, error)

	mu    sync.Mutex
	Calls []model.File
}

func (m *MockImageEngine) Transform(ctx context.Context, file model.File, settings model.ImageSettings) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, file)
	m.mu.Unlock()
	if m.TransformFunc != nil {
		return m.TransformFunc(ctx, file, settings)
	}
	return []byte("image:" + file.Name), nil
}

// MockLoader is a test double for ports.EngineLoader.
type MockLoader struct {
	LoadFunc func(ctx context.Context) error

	mu     sync.Mutex
	loaded bool
	Loads  int
}

func (m *MockLoader) Load(ctx context.Context) error {
	m.mu.Lock()
	m.Loads++
	m.mu.Unlock()
	if m.LoadFunc != nil {
		if err := m.LoadFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
	return nil
}

func (m *MockLoader) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *MockLoader) Loading() bool { return false }
