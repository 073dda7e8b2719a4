package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Skryldev/media-workbench/domain/ports"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"go.uber.org/zap"
)

// killGrace bounds how long a cancelled ffmpeg may take to exit after its
// context is done.
const killGrace = 2 * time.Second

// Executor implements ports.FFmpegExecutor
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

// ExecutorConfig holds configuration for the FFmpeg executor
type ExecutorConfig struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logger.Logger
}

// NewExecutor resolves the ffmpeg and ffprobe binaries.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	ffmpegPath, err := resolve(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := resolve(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}, nil
}

func resolve(configured, name string) (string, error) {
	bin := strings.TrimSpace(configured)
	if bin == "" {
		bin = name
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", bin, err)
	}
	return path, nil
}

// Execute runs ffmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, args []string, onProgress func(ports.ProgressSample)) error {
	full := make([]string, 0, len(args)+4)
	full = append(full, "-hide_banner", "-nostdin")
	if onProgress != nil {
		full = append(full, "-progress", "pipe:1", "-nostats")
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	cmd.WaitDelay = killGrace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout io.ReadCloser
	if onProgress != nil {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("create stdout pipe: %w", err)
		}
	}

	e.log.Debug("executing ffmpeg", zap.Strings("args", full))

	if err := cmd.Start(); err != nil {
		return pkgerrors.NewFFmpegError("ffmpeg failed to start", full, -1, "", err)
	}

	parsed := make(chan struct{})
	if stdout != nil {
		go func() {
			defer close(parsed)
			ParseProgress(stdout, onProgress)
		}()
	} else {
		close(parsed)
	}

	<-parsed
	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return pkgerrors.NewFFmpegError(
			"ffmpeg execution failed",
			full,
			exitCode,
			stderr.String(),
			err,
		)
	}

	return nil
}

// Probe runs ffprobe and returns JSON output
func (e *Executor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"--", inputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, pkgerrors.NewFFmpegError(
			"ffprobe execution failed",
			args,
			exitCode,
			stderr.String(),
			err,
		)
	}

	return stdout.Bytes(), nil
}

// Version returns the first line of `ffmpeg -version`.
func (e *Executor) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Encoders lists audio encoders compiled into the runtime.
func (e *Executor) Encoders(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	return ParseEncoders(bytes.NewReader(out)), nil
}

// ParseEncoders extracts audio encoder names from `ffmpeg -encoders` output.
// Capability lines look like " A....D libmp3lame  libmp3lame MP3 ...".
func ParseEncoders(r io.Reader) []string {
	var names []string
	scanner := bufio.NewScanner(r)
	pastHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "------") {
			pastHeader = true
			continue
		}
		if !pastHeader {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "A") {
			continue
		}
		names = append(names, fields[1])
	}
	return names
}

// ParseProgress reads ffmpeg's key=value progress stream and emits one
// sample per block.
func ParseProgress(r io.Reader, onProgress func(ports.ProgressSample)) {
	scanner := bufio.NewScanner(r)
	var sample ports.ProgressSample
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// both keys carry microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				sample.OutTime = time.Duration(us) * time.Microsecond
			}
		case "progress":
			sample.Done = value == "end"
			onProgress(sample)
		}
	}
	// drain so ffmpeg never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}
