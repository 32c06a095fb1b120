package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir string `yaml:"work_dir"`
	TempDir string `yaml:"temp_dir"`

	Timeline TimelineConfig `yaml:"timeline"`
	Playback PlaybackConfig `yaml:"playback"`
	Export   ExportConfig   `yaml:"export"`
	Text     TextConfig     `yaml:"text"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
}

// TimelineConfig controls the time/coordinate mapping and the ruler
type TimelineConfig struct {
	BasePixelsPerSecond float64 `yaml:"base_pixels_per_second"`
	MinZoom             float64 `yaml:"min_zoom"`
	MaxZoom             float64 `yaml:"max_zoom"`
	MinItemWidth        float64 `yaml:"min_item_width"`
	MinTickSpacing      float64 `yaml:"min_tick_spacing"`
	TargetTicks         int     `yaml:"target_ticks"`
	MaxTicks            int     `yaml:"max_ticks"`
	NudgeStep           float64 `yaml:"nudge_step"`
}

type PlaybackConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FrameRate     float64 `yaml:"frame_rate"`
	SeekTolerance float64 `yaml:"seek_tolerance"`
}

type ExportConfig struct {
	FPS        float64 `yaml:"fps"`
	Quality    string  `yaml:"quality"`
	Format     string  `yaml:"format"`
	VideoCodec string  `yaml:"video_codec"`
	AudioCodec string  `yaml:"audio_codec"`
	Preset     string  `yaml:"preset"`
	SampleRate int     `yaml:"sample_rate"`
	OutputDir  string  `yaml:"output_dir"`
}

// TextConfig is the default style applied to new text items
type TextConfig struct {
	FontSize   float64 `yaml:"font_size"`
	Color      string  `yaml:"color"`
	Background string  `yaml:"background"`
	Padding    float64 `yaml:"padding"`
	Position   string  `yaml:"position"`
	Align      string  `yaml:"align"`
	LineHeight float64 `yaml:"line_height"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		WorkDir: "./work",
		TempDir: "./temp",
		Timeline: TimelineConfig{
			BasePixelsPerSecond: 100,
			MinZoom:             0.1,
			MaxZoom:             10,
			MinItemWidth:        20,
			MinTickSpacing:      60,
			TargetTicks:         20,
			MaxTicks:            500,
			NudgeStep:           0.1,
		},
		Playback: PlaybackConfig{
			Width:         1920,
			Height:        1080,
			FrameRate:     60,
			SeekTolerance: 0.1,
		},
		Export: ExportConfig{
			FPS:        30,
			Quality:    "high",
			Format:     "mp4",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Preset:     "medium",
			SampleRate: 44100,
			OutputDir:  "./output",
		},
		Text: TextConfig{
			FontSize:   48,
			Color:      "#FFFFFF",
			Background: "#000000B3",
			Padding:    20,
			Position:   "center",
			Align:      "center",
			LineHeight: 1.2,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./slopedit.yaml",
		"./slopedit.yml",
		filepath.Join(os.Getenv("HOME"), ".slopedit", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
