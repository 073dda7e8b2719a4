// Package config loads the workbench's TOML configuration: codec runtime
// paths, loudness targets, defaults for new queue items, engine bootstrap
// retry and extra audio presets.
package config
