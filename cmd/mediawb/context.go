package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	workbench "github.com/Skryldev/media-workbench"
	"github.com/Skryldev/media-workbench/internal/config"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/progress"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	config     *config.Config
	configPath string
	configSeen bool
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
		cfg.Logging.Level = strings.ToLower(lvl)
	}
	c.config = cfg
	c.configPath = resolved
	c.configSeen = exists
	return cfg, nil
}

// newLogger picks a human-friendly console logger when stderr is a terminal
// and the config does not ask for JSON.
func (c *commandContext) newLogger(stderr io.Writer) (*logger.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	development := cfg.Logging.Format != "json" && isTerminal(stderr)
	return logger.NewWithLevel(development, cfg.Logging.Level)
}

// newWorkbench builds a workbench from the loaded configuration.
func (c *commandContext) newWorkbench(log *logger.Logger, reporter progress.Reporter) (*workbench.Workbench, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	retryCfg := cfg.RetryConfig()
	return workbench.New(workbench.Config{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		ScratchDir:  cfg.Paths.ScratchDir,
		Logger:      log,
		Reporter:    reporter,
		Loudness: workbench.Loudness{
			Target:   cfg.Loudness.TargetLUFS,
			TruePeak: cfg.Loudness.TruePeak,
			Range:    cfg.Loudness.Range,
		},
		DefaultAudio: cfg.AudioDefaults(),
		DefaultImage: cfg.ImageDefaults(),
		RetryConfig:  &retryCfg,
	})
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
