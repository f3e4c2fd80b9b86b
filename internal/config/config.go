// Package config holds the typed echodrill configuration and turns viper
// settings into it.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgnsrekt/echodrill/internal/audio"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/text/language"
)

// Generation modes for lessons that arrive without clips.
const (
	GenerateOff     = "off"
	GenerateService = "service"
	GenerateOpenAI  = "openai"
)

// Config contains all echodrill settings.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Generate GenerateConfig `yaml:"generate"`
	Filler   FillerConfig   `yaml:"filler"`
	Timings  drill.Timings  `yaml:"timings"`
	Audio    AudioConfig    `yaml:"audio"`
	Speech   SpeechConfig   `yaml:"speech"`
	Cache    CacheConfig    `yaml:"cache"`
}

// SourceConfig selects where lessons come from: a YAML deck or the lesson
// service, exactly one of them.
type SourceConfig struct {
	Lessons           string        `yaml:"lessons"`
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`

	// Endpoint paths on the lesson service. Empty keeps the client defaults.
	RandomPath   string `yaml:"random_path"`
	GeneratePath string `yaml:"generate_path"`
	FillerPath   string `yaml:"filler_path"`
}

// GenerateConfig controls on-demand clip generation.
type GenerateConfig struct {
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`

	// Dir stores clips generated with OpenAI.
	Dir string `yaml:"dir"`

	OpenAIModel string  `yaml:"openai_model"`
	OpenAIVoice string  `yaml:"openai_voice"`
	OpenAISpeed float64 `yaml:"openai_speed"`
}

// FillerConfig describes the announcement between lessons.
type FillerConfig struct {
	URL           string        `yaml:"url"`
	Text          string        `yaml:"text"`
	Locale        string        `yaml:"locale"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
}

// AudioConfig configures decoding, preloading and the sound device.
type AudioConfig struct {
	SampleRate       int           `yaml:"sample_rate"`
	BufferSize       time.Duration `yaml:"buffer_size"`
	PreloadTimeout   time.Duration `yaml:"preload_timeout"`
	MinPlayableBytes int           `yaml:"min_playable_bytes"`
}

// SpeechConfig configures the local speech fallback.
type SpeechConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Commands []string `yaml:"commands"`
	Rate     float64  `yaml:"rate"`
}

// CacheConfig configures the clip cache. Sizes are in MiB; a zero disk size
// disables the disk level.
type CacheConfig struct {
	Dir      string        `yaml:"dir"`
	MemoryMB int           `yaml:"memory_mb"`
	DiskMB   int           `yaml:"disk_mb"`
	Level    int           `yaml:"level"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config with the canonical drill settings.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Timeout:           10 * time.Second,
			RequestsPerMinute: 60,
		},
		Generate: GenerateConfig{
			Mode:        GenerateOff,
			Timeout:     drill.DefaultGenerateTimeout,
			OpenAIModel: "tts-1",
			OpenAIVoice: "alloy",
		},
		Filler: FillerConfig{
			Text:          drill.DefaultFillerText,
			Locale:        drill.DefaultFillerLocale,
			FallbackDelay: drill.DefaultFallbackDelay,
		},
		Timings: drill.DefaultTimings(),
		Audio: AudioConfig{
			SampleRate:       audio.DefaultSampleRate,
			PreloadTimeout:   audio.DefaultPreloadTimeout,
			MinPlayableBytes: audio.DefaultMinPlayableBytes,
		},
		Speech: SpeechConfig{
			Enabled:  true,
			Commands: []string{"espeak-ng", "espeak"},
			Rate:     0.8,
		},
		Cache: CacheConfig{
			MemoryMB: 64,
			DiskMB:   512,
			Level:    3,
			TTL:      30 * 24 * time.Hour,
		},
	}
}

// Validate checks the configuration and normalizes it: modes are lower
// cased and paths have ~ expanded.
func (c *Config) Validate() error {
	if err := c.Source.validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Generate.validate(); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := c.Filler.validate(); err != nil {
		return fmt.Errorf("filler: %w", err)
	}
	if err := c.Timings.Validate(); err != nil {
		return fmt.Errorf("timings: %w", err)
	}
	if err := c.Audio.validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Speech.validate(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Cache.validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func (c *SourceConfig) validate() error {
	switch {
	case c.Lessons == "" && c.URL == "":
		return errors.New("set either a lesson deck (--lessons) or a lesson service URL (--source)")
	case c.Lessons != "" && c.URL != "":
		return errors.New("a lesson deck and a lesson service URL cannot be used together")
	}
	if c.URL != "" && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("lesson service URL %q must use http or https", c.URL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", c.Timeout)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative, got %d", c.RequestsPerMinute)
	}

	var err error
	c.Lessons, err = expand(c.Lessons)
	return err
}

func (c *GenerateConfig) validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = GenerateOff
	}
	modes := []string{GenerateOff, GenerateService, GenerateOpenAI}
	if !slices.Contains(modes, c.Mode) {
		return fmt.Errorf("invalid mode %q: must be one of %v", c.Mode, modes)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.OpenAISpeed != 0 && (c.OpenAISpeed < 0.25 || c.OpenAISpeed > 4.0) {
		return fmt.Errorf("openai_speed must be between 0.25 and 4.0, got %.2f", c.OpenAISpeed)
	}

	var err error
	c.Dir, err = expand(c.Dir)
	return err
}

func (c *FillerConfig) validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("text cannot be empty")
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if c.FallbackDelay < 0 {
		return fmt.Errorf("fallback_delay cannot be negative, got %v", c.FallbackDelay)
	}
	return nil
}

func (c *AudioConfig) validate() error {
	rates := []int{44100, 48000}
	if !slices.Contains(rates, c.SampleRate) {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, rates)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size cannot be negative, got %v", c.BufferSize)
	}
	if c.PreloadTimeout <= 0 {
		return fmt.Errorf("preload_timeout must be positive, got %v", c.PreloadTimeout)
	}
	if c.MinPlayableBytes < 0 {
		return fmt.Errorf("min_playable_bytes cannot be negative, got %d", c.MinPlayableBytes)
	}
	return nil
}

func (c *SpeechConfig) validate() error {
	if c.Rate < 0.1 || c.Rate > 3.0 {
		return fmt.Errorf("rate must be between 0.1 and 3.0, got %.2f", c.Rate)
	}
	if c.Enabled && len(c.Commands) == 0 {
		return errors.New("at least one speech command is required when speech is enabled")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.MemoryMB < 1 || c.MemoryMB > 4096 {
		return fmt.Errorf("memory_mb must be between 1 and 4096, got %d", c.MemoryMB)
	}
	if c.DiskMB < 0 || c.DiskMB > 100000 {
		return fmt.Errorf("disk_mb must be between 0 and 100000, got %d", c.DiskMB)
	}
	if c.Level < 1 || c.Level > 22 {
		return fmt.Errorf("level must be between 1 and 22, got %d", c.Level)
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative, got %v", c.TTL)
	}

	var err error
	c.Dir, err = expand(c.Dir)
	return err
}

func expand(path string) (string, error) {
	if path == "" || strings.Contains(path, "://") {
		return path, nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("unable to expand %q: %w", path, err)
	}
	return p, nil
}
