package model

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaKind selects which engine processes an item. It never changes after
// the item is created.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindImage MediaKind = "image"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// AudioFormat represents supported output containers
type AudioFormat string

const (
	AudioMP3  AudioFormat = "mp3"
	AudioAAC  AudioFormat = "aac"
	AudioFLAC AudioFormat = "flac"
	AudioWAV  AudioFormat = "wav"
	AudioOGG  AudioFormat = "ogg"
	AudioOpus AudioFormat = "opus"
)

var audioExtensions = map[AudioFormat]string{
	AudioMP3:  "mp3",
	AudioAAC:  "m4a",
	AudioFLAC: "flac",
	AudioWAV:  "wav",
	AudioOGG:  "ogg",
	AudioOpus: "opus",
}

// Extension returns the file extension for the format's container.
func (f AudioFormat) Extension() string {
	if ext, ok := audioExtensions[f]; ok {
		return ext
	}
	return string(f)
}

// Lossless reports whether the format ignores the bitrate setting.
func (f AudioFormat) Lossless() bool {
	return f == AudioFLAC || f == AudioWAV
}

// Valid reports whether f is a known format.
func (f AudioFormat) Valid() bool {
	_, ok := audioExtensions[f]
	return ok
}

// ParseAudioFormat normalizes user input such as "MP3" or "m4a".
func ParseAudioFormat(value string) (AudioFormat, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "m4a" {
		v = string(AudioAAC)
	}
	f := AudioFormat(v)
	return f, f.Valid()
}

// ImageFormat represents supported image encoders
type ImageFormat string

const (
	ImageJPEG ImageFormat = "jpeg"
	ImagePNG  ImageFormat = "png"
	ImageWebP ImageFormat = "webp"
)

// Extension returns the file extension for the format.
func (f ImageFormat) Extension() string {
	if f == ImageJPEG {
		return "jpg"
	}
	return string(f)
}

// MimeType returns the MIME type written into cover-art tags.
func (f ImageFormat) MimeType() string {
	return "image/" + string(f)
}

// Valid reports whether f is a known format.
func (f ImageFormat) Valid() bool {
	switch f {
	case ImageJPEG, ImagePNG, ImageWebP:
		return true
	}
	return false
}

// ParseImageFormat normalizes user input such as "JPG".
func ParseImageFormat(value string) (ImageFormat, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "jpg" {
		v = string(ImageJPEG)
	}
	f := ImageFormat(v)
	return f, f.Valid()
}

// File is an immutable handle to user-supplied input bytes.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// BaseName returns the file name without directory or extension.
func (f File) BaseName() string {
	base := filepath.Base(f.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Metadata holds the tags written into an audio container.
type Metadata struct {
	Title  string `toml:"title"`
	Artist string `toml:"artist"`
	Album  string `toml:"album"`
}

// AudioSettings are the per-item parameters for the audio engine.
type AudioSettings struct {
	Format    AudioFormat
	Bitrate   string
	Normalize bool
	TrimStart string
	TrimEnd   string
	Metadata  Metadata

	// LinkedCoverArtID names an item in the image queue; empty means
	// "use the first completed image, if any".
	LinkedCoverArtID string
}

// ImageSettings are the per-item parameters for the image engine.
type ImageSettings struct {
	TargetWidth      int
	TargetHeight     int
	CropToSquare     bool
	Format           ImageFormat
	Quality          int
	KeepOriginalSize bool
}

// DefaultAudioSettings mirrors the tools page defaults.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		Format:    AudioMP3,
		Bitrate:   "320k",
		Normalize: false,
	}
}

// DefaultImageSettings produces a 3000x3000 square JPEG, the usual cover-art
// delivery size.
func DefaultImageSettings() ImageSettings {
	return ImageSettings{
		TargetWidth:  3000,
		TargetHeight: 3000,
		CropToSquare: true,
		Format:       ImageJPEG,
		Quality:      90,
	}
}

// Preset overwrites the encode-related fields of every current audio item.
type Preset struct {
	Name      string      `toml:"name"`
	Format    AudioFormat `toml:"format"`
	Bitrate   string      `toml:"bitrate"`
	Normalize bool        `toml:"normalize"`
}

// Apply copies the preset's fields onto s, leaving trim, metadata and the
// cover link untouched.
func (p Preset) Apply(s *AudioSettings) {
	s.Format = p.Format
	s.Bitrate = p.Bitrate
	s.Normalize = p.Normalize
}

// BuiltinPresets returns the presets offered without configuration.
func BuiltinPresets() []Preset {
	return []Preset{
		{Name: "streaming", Format: AudioMP3, Bitrate: "320k", Normalize: true},
		{Name: "podcast", Format: AudioMP3, Bitrate: "128k", Normalize: true},
		{Name: "archive", Format: AudioFLAC, Bitrate: "", Normalize: false},
		{Name: "mobile", Format: AudioAAC, Bitrate: "192k", Normalize: true},
	}
}

// EngineState is the observable status of one engine.
type EngineState struct {
	Loaded  bool
	Loading bool
}

// CoverArt is an image to embed into an audio container.
type CoverArt struct {
	Data     []byte
	MimeType string
}

// AudioMetadata holds probed properties of an audio file
type AudioMetadata struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	Bitrate    int
	Codec      string
	Format     string
	Size       int64
}
