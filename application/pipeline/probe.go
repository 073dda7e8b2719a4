package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
)

// ffprobeOutput maps key fields from ffprobe JSON
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		Size       string `json:"size"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// errNoAudioStream marks containers that decode but carry no audio.
var errNoAudioStream = fmt.Errorf("no audio stream")

func (e *Engine) probe(ctx context.Context, path string) (*model.AudioMetadata, error) {
	data, err := e.executor.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return parseProbe(data)
}

func parseProbe(data []byte) (*model.AudioMetadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &model.AudioMetadata{
		Format:   probe.Format.FormatName,
		Duration: parseDuration(probe.Format.Duration),
	}
	meta.Size, _ = strconv.ParseInt(probe.Format.Size, 10, 64)

	found := false
	for _, s := range probe.Streams {
		if !strings.EqualFold(s.CodecType, "audio") {
			continue
		}
		found = true
		meta.Codec = s.CodecName
		meta.Channels = s.Channels
		meta.SampleRate, _ = strconv.Atoi(s.SampleRate)
		meta.Bitrate, _ = strconv.Atoi(s.BitRate)
		if meta.Duration == 0 {
			meta.Duration = parseDuration(s.Duration)
		}
		break // take first audio stream
	}
	if !found {
		return nil, errNoAudioStream
	}
	if meta.Bitrate == 0 {
		meta.Bitrate, _ = strconv.Atoi(probe.Format.BitRate)
	}
	return meta, nil
}

func parseDuration(value string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// Probe returns metadata about an audio file without processing it
func (e *Engine) Probe(ctx context.Context, file model.File) (*model.AudioMetadata, error) {
	dir, err := e.storage.TempDir(ctx, "probe-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer e.storage.RemoveAll(context.WithoutCancel(ctx), dir)

	path := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(file.Name)))
	if err := e.storage.WriteFile(ctx, path, file.Data); err != nil {
		return nil, fmt.Errorf("stage input: %w", err)
	}
	meta, err := e.probe(ctx, path)
	if err != nil {
		return nil, pkgerrors.NewUnsupportedFormatError(file.Name, "source is not decodable audio", err)
	}
	return meta, nil
}
