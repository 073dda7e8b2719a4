package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/pkg/retry"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch and output locations.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	OutputDir  string `toml:"output_dir"`
}

// FFmpeg locates the codec runtime binaries. Empty values are looked up on PATH.
type FFmpeg struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
}

// Loudness holds the normalization targets used when an item asks for it.
type Loudness struct {
	TargetLUFS float64 `toml:"target_lufs"`
	TruePeak   float64 `toml:"true_peak"`
	Range      float64 `toml:"range"`
}

// Audio holds the settings new audio items start with.
type Audio struct {
	Format    string `toml:"format"`
	Bitrate   string `toml:"bitrate"`
	Normalize bool   `toml:"normalize"`
}

// Image holds the settings new image items start with.
type Image struct {
	TargetWidth      int    `toml:"target_width"`
	TargetHeight     int    `toml:"target_height"`
	CropToSquare     bool   `toml:"crop_to_square"`
	Format           string `toml:"format"`
	Quality          int    `toml:"quality"`
	KeepOriginalSize bool   `toml:"keep_original_size"`
}

// Bootstrap controls how engine initialization is retried.
type Bootstrap struct {
	MaxAttempts    int     `toml:"max_attempts"`
	DelayMillis    int     `toml:"delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelayMillis int     `toml:"max_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the workbench.
type Config struct {
	Paths     Paths          `toml:"paths"`
	FFmpeg    FFmpeg         `toml:"ffmpeg"`
	Loudness  Loudness       `toml:"loudness"`
	Audio     Audio          `toml:"audio"`
	Image     Image          `toml:"image"`
	Bootstrap Bootstrap      `toml:"bootstrap"`
	Logging   Logging        `toml:"logging"`
	Presets   []model.Preset `toml:"presets"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediawb/config.toml")
}

// Load reads path (or the default location when empty), applies defaults for
// anything unset and validates the result. exists reports whether a file was
// found; without one the defaults are returned.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) normalize() error {
	for _, p := range []*string{&c.Paths.ScratchDir, &c.Paths.OutputDir, &c.FFmpeg.FFmpegPath, &c.FFmpeg.FFprobePath} {
		*p = strings.TrimSpace(*p)
	}
	if c.Paths.ScratchDir != "" {
		dir, err := expandPath(c.Paths.ScratchDir)
		if err != nil {
			return err
		}
		c.Paths.ScratchDir = dir
	}
	if c.Paths.OutputDir != "" {
		dir, err := expandPath(c.Paths.OutputDir)
		if err != nil {
			return err
		}
		c.Paths.OutputDir = dir
	}

	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	c.Image.Format = strings.ToLower(strings.TrimSpace(c.Image.Format))

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	for i := range c.Presets {
		c.Presets[i].Name = strings.ToLower(strings.TrimSpace(c.Presets[i].Name))
		if f, ok := model.ParseAudioFormat(string(c.Presets[i].Format)); ok {
			c.Presets[i].Format = f
		}
	}
	return nil
}

// AudioDefaults returns the settings new audio items start with.
func (c *Config) AudioDefaults() model.AudioSettings {
	s := model.DefaultAudioSettings()
	if f, ok := model.ParseAudioFormat(c.Audio.Format); ok {
		s.Format = f
	}
	s.Bitrate = c.Audio.Bitrate
	s.Normalize = c.Audio.Normalize
	return s
}

// ImageDefaults returns the settings new image items start with.
func (c *Config) ImageDefaults() model.ImageSettings {
	s := model.ImageSettings{
		TargetWidth:      c.Image.TargetWidth,
		TargetHeight:     c.Image.TargetHeight,
		CropToSquare:     c.Image.CropToSquare,
		Quality:          c.Image.Quality,
		KeepOriginalSize: c.Image.KeepOriginalSize,
		Format:           model.ImageJPEG,
	}
	if f, ok := model.ParseImageFormat(c.Image.Format); ok {
		s.Format = f
	}
	return s
}

// RetryConfig converts the bootstrap section into a retry policy.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts: c.Bootstrap.MaxAttempts,
		Delay:       time.Duration(c.Bootstrap.DelayMillis) * time.Millisecond,
		Multiplier:  c.Bootstrap.Multiplier,
		MaxDelay:    time.Duration(c.Bootstrap.MaxDelayMillis) * time.Millisecond,
	}
}

// AllPresets returns the built-in presets followed by configured ones. A
// configured preset replaces a built-in of the same name in place.
func (c *Config) AllPresets() []model.Preset {
	out := model.BuiltinPresets()
	for _, p := range c.Presets {
		replaced := false
		for i := range out {
			if out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

// Preset looks up a preset by name, case-insensitively.
func (c *Config) Preset(name string) (model.Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range c.AllPresets() {
		if p.Name == name {
			return p, true
		}
	}
	return model.Preset{}, false
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
