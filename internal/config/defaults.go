package config

const defaultLogLevel = "info"

// Default returns a configuration populated with the workbench defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: ".",
		},
		Loudness: Loudness{
			TargetLUFS: -16,
			TruePeak:   -1.5,
			Range:      11,
		},
		Audio: Audio{
			Format:  "mp3",
			Bitrate: "320k",
		},
		Image: Image{
			TargetWidth:  3000,
			TargetHeight: 3000,
			CropToSquare: true,
			Format:       "jpeg",
			Quality:      90,
		},
		Bootstrap: Bootstrap{
			MaxAttempts:    2,
			DelayMillis:    500,
			Multiplier:     2,
			MaxDelayMillis: 5000,
		},
		Logging: Logging{
			Format: "console",
			Level:  defaultLogLevel,
		},
	}
}
