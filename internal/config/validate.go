package config

import (
	"fmt"
	"regexp"

	"github.com/Skryldev/media-workbench/domain/model"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"go.uber.org/zap/zapcore"
)

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*k?$`)

// Validate ensures the configuration is usable. Failures are
// *errors.ValidationError naming the offending key.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateLoudness(); err != nil {
		return err
	}
	if err := c.validateBootstrap(); err != nil {
		return err
	}
	if err := c.validatePresets(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return pkgerrors.NewValidationError("logging.level", c.Logging.Level, err.Error())
	}
	return nil
}

func (c *Config) validateAudio() error {
	f, ok := model.ParseAudioFormat(c.Audio.Format)
	if !ok {
		return pkgerrors.NewValidationError("audio.format", c.Audio.Format, "must be one of mp3, aac, flac, wav, ogg, opus")
	}
	if !f.Lossless() && !bitratePattern.MatchString(c.Audio.Bitrate) {
		return pkgerrors.NewValidationError("audio.bitrate", c.Audio.Bitrate, "must look like 320k")
	}
	return nil
}

func (c *Config) validateImage() error {
	if _, ok := model.ParseImageFormat(c.Image.Format); !ok {
		return pkgerrors.NewValidationError("image.format", c.Image.Format, "must be one of jpeg, png, webp")
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return pkgerrors.NewValidationError("image.quality", c.Image.Quality, "must be between 1 and 100")
	}
	if c.Image.TargetWidth < 0 {
		return pkgerrors.NewValidationError("image.target_width", c.Image.TargetWidth, "must not be negative")
	}
	if c.Image.TargetHeight < 0 {
		return pkgerrors.NewValidationError("image.target_height", c.Image.TargetHeight, "must not be negative")
	}
	return nil
}

func (c *Config) validateLoudness() error {
	l := c.Loudness
	switch {
	case l.TargetLUFS < -70 || l.TargetLUFS > -5:
		return pkgerrors.NewValidationError("loudness.target_lufs", l.TargetLUFS, "must be between -70 and -5")
	case l.TruePeak < -9 || l.TruePeak > 0:
		return pkgerrors.NewValidationError("loudness.true_peak", l.TruePeak, "must be between -9 and 0")
	case l.Range < 1 || l.Range > 50:
		return pkgerrors.NewValidationError("loudness.range", l.Range, "must be between 1 and 50")
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	b := c.Bootstrap
	switch {
	case b.MaxAttempts < 1:
		return pkgerrors.NewValidationError("bootstrap.max_attempts", b.MaxAttempts, "must be at least 1")
	case b.DelayMillis < 0:
		return pkgerrors.NewValidationError("bootstrap.delay_ms", b.DelayMillis, "must not be negative")
	case b.MaxDelayMillis < 0:
		return pkgerrors.NewValidationError("bootstrap.max_delay_ms", b.MaxDelayMillis, "must not be negative")
	}
	return nil
}

func (c *Config) validatePresets() error {
	seen := make(map[string]struct{}, len(c.Presets))
	for i, p := range c.Presets {
		field := fmt.Sprintf("presets[%d]", i)
		if p.Name == "" {
			return pkgerrors.NewValidationError(field+".name", p.Name, "must be set")
		}
		if _, dup := seen[p.Name]; dup {
			return pkgerrors.NewValidationError(field+".name", p.Name, "is defined twice")
		}
		seen[p.Name] = struct{}{}
		if !p.Format.Valid() {
			return pkgerrors.NewValidationError(field+".format", p.Format, "unknown format")
		}
		if !p.Format.Lossless() && !bitratePattern.MatchString(p.Bitrate) {
			return pkgerrors.NewValidationError(field+".bitrate", p.Bitrate, "must look like 320k")
		}
	}
	return nil
}
