package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load builds a Config from v, starting from DefaultConfig and overriding
// every key that is set. The result is validated.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := DefaultConfig()

	loadSource(v, &cfg.Source)
	loadGenerate(v, &cfg.Generate)
	loadFiller(v, &cfg.Filler)
	loadTimings(v, &cfg)
	loadAudio(v, &cfg.Audio)
	loadSpeech(v, &cfg.Speech)
	loadCache(v, &cfg.Cache)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadSource(v *viper.Viper, c *SourceConfig) {
	if v.IsSet("source.lessons") {
		c.Lessons = v.GetString("source.lessons")
	}
	if v.IsSet("source.url") {
		c.URL = v.GetString("source.url")
	}
	if v.IsSet("source.token") {
		c.Token = v.GetString("source.token")
	}
	if v.IsSet("source.timeout") {
		c.Timeout = v.GetDuration("source.timeout")
	}
	if v.IsSet("source.requests_per_minute") {
		c.RequestsPerMinute = v.GetInt("source.requests_per_minute")
	}
	if v.IsSet("source.random_path") {
		c.RandomPath = v.GetString("source.random_path")
	}
	if v.IsSet("source.generate_path") {
		c.GeneratePath = v.GetString("source.generate_path")
	}
	if v.IsSet("source.filler_path") {
		c.FillerPath = v.GetString("source.filler_path")
	}
}

func loadGenerate(v *viper.Viper, c *GenerateConfig) {
	if v.IsSet("generate.mode") {
		c.Mode = v.GetString("generate.mode")
	}
	if v.IsSet("generate.timeout") {
		c.Timeout = v.GetDuration("generate.timeout")
	}
	if v.IsSet("generate.dir") {
		c.Dir = v.GetString("generate.dir")
	}
	if v.IsSet("generate.openai_model") {
		c.OpenAIModel = v.GetString("generate.openai_model")
	}
	if v.IsSet("generate.openai_voice") {
		c.OpenAIVoice = v.GetString("generate.openai_voice")
	}
	if v.IsSet("generate.openai_speed") {
		c.OpenAISpeed = v.GetFloat64("generate.openai_speed")
	}
}

func loadFiller(v *viper.Viper, c *FillerConfig) {
	if v.IsSet("filler.url") {
		c.URL = v.GetString("filler.url")
	}
	if v.IsSet("filler.text") {
		c.Text = v.GetString("filler.text")
	}
	if v.IsSet("filler.locale") {
		c.Locale = v.GetString("filler.locale")
	}
	if v.IsSet("filler.fallback_delay") {
		c.FallbackDelay = v.GetDuration("filler.fallback_delay")
	}
}

func loadTimings(v *viper.Viper, c *Config) {
	t := &c.Timings
	if v.IsSet("timings.pause_short") {
		t.PauseShort = v.GetDuration("timings.pause_short")
	}
	if v.IsSet("timings.pause_repeat_short") {
		t.PauseForRepeatShort = v.GetDuration("timings.pause_repeat_short")
	}
	if v.IsSet("timings.pause_repeat_long") {
		t.PauseForRepeatLong = v.GetDuration("timings.pause_repeat_long")
	}
	if v.IsSet("timings.pause_before_filler") {
		t.PauseBeforeFiller = v.GetDuration("timings.pause_before_filler")
	}
	if v.IsSet("timings.pause_after_filler") {
		t.PauseAfterFiller = v.GetDuration("timings.pause_after_filler")
	}
}

func loadAudio(v *viper.Viper, c *AudioConfig) {
	if v.IsSet("audio.sample_rate") {
		c.SampleRate = v.GetInt("audio.sample_rate")
	}
	if v.IsSet("audio.buffer_size") {
		c.BufferSize = v.GetDuration("audio.buffer_size")
	}
	if v.IsSet("audio.preload_timeout") {
		c.PreloadTimeout = v.GetDuration("audio.preload_timeout")
	}
	if v.IsSet("audio.min_playable_bytes") {
		c.MinPlayableBytes = v.GetInt("audio.min_playable_bytes")
	}
}

func loadSpeech(v *viper.Viper, c *SpeechConfig) {
	if v.IsSet("speech.enabled") {
		c.Enabled = v.GetBool("speech.enabled")
	}
	if v.IsSet("speech.commands") {
		c.Commands = v.GetStringSlice("speech.commands")
	}
	if v.IsSet("speech.rate") {
		c.Rate = v.GetFloat64("speech.rate")
	}
}

func loadCache(v *viper.Viper, c *CacheConfig) {
	if v.IsSet("cache.dir") {
		c.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_mb") {
		c.MemoryMB = v.GetInt("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		c.DiskMB = v.GetInt("cache.disk_mb")
	}
	if v.IsSet("cache.level") {
		c.Level = v.GetInt("cache.level")
	}
	if v.IsSet("cache.ttl") {
		c.TTL = v.GetDuration("cache.ttl")
	}
}

// SetDefaults registers the defaults with v so that they show up in
// AllSettings and environment lookups.
func SetDefaults(v *viper.Viper) {
	if v == nil {
		v = viper.GetViper()
	}
	d := DefaultConfig()

	v.SetDefault("source.timeout", d.Source.Timeout)
	v.SetDefault("source.requests_per_minute", d.Source.RequestsPerMinute)

	v.SetDefault("generate.mode", d.Generate.Mode)
	v.SetDefault("generate.timeout", d.Generate.Timeout)
	v.SetDefault("generate.openai_model", d.Generate.OpenAIModel)
	v.SetDefault("generate.openai_voice", d.Generate.OpenAIVoice)

	v.SetDefault("filler.text", d.Filler.Text)
	v.SetDefault("filler.locale", d.Filler.Locale)
	v.SetDefault("filler.fallback_delay", d.Filler.FallbackDelay)

	v.SetDefault("timings.pause_short", d.Timings.PauseShort)
	v.SetDefault("timings.pause_repeat_short", d.Timings.PauseForRepeatShort)
	v.SetDefault("timings.pause_repeat_long", d.Timings.PauseForRepeatLong)
	v.SetDefault("timings.pause_before_filler", d.Timings.PauseBeforeFiller)
	v.SetDefault("timings.pause_after_filler", d.Timings.PauseAfterFiller)

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.preload_timeout", d.Audio.PreloadTimeout)
	v.SetDefault("audio.min_playable_bytes", d.Audio.MinPlayableBytes)

	v.SetDefault("speech.enabled", d.Speech.Enabled)
	v.SetDefault("speech.commands", d.Speech.Commands)
	v.SetDefault("speech.rate", d.Speech.Rate)

	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.level", d.Cache.Level)
	v.SetDefault("cache.ttl", d.Cache.TTL)
}
