package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/audio"
	"github.com/dgnsrekt/echodrill/internal/cache"
	"github.com/dgnsrekt/echodrill/internal/config"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/dgnsrekt/echodrill/internal/lesson"
	"github.com/dgnsrekt/echodrill/internal/speech"
	"github.com/dustin/go-humanize"
)

// drillRuntime is the engine plus the process-wide resources it runs on.
type drillRuntime struct {
	engine *drill.Engine
	clips  *cache.Clips
}

// newDrill wires the engine from cfg.
func newDrill(cfg config.Config, pcfg processConfig, hooks drill.Hooks) (*drillRuntime, error) {
	logger := log.Default()

	clips, err := newClipCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	sink, err := audio.NewOtoSink(audio.SinkConfig{
		SampleRate: cfg.Audio.SampleRate,
		BufferSize: cfg.Audio.BufferSize,
	})
	if err != nil {
		_ = clips.Close()
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}

	backend := audio.NewBackend(sink, audio.BackendConfig{
		PreloadTimeout:   cfg.Audio.PreloadTimeout,
		MinPlayableBytes: cfg.Audio.MinPlayableBytes,
		Cache:            clips,
		Logger:           logger,
	})

	source, err := newSource(cfg.Source, logger)
	if err != nil {
		_ = clips.Close()
		return nil, err
	}

	generator, err := newGenerator(cfg, pcfg, logger)
	if err != nil {
		_ = clips.Close()
		return nil, err
	}

	var speaker drill.Speaker
	if cfg.Speech.Enabled {
		speaker = speech.New(speech.Config{
			Renderer:      &speech.CommandRenderer{Commands: cfg.Speech.Commands},
			Player:        backend.NewController(),
			FallbackDelay: cfg.Filler.FallbackDelay,
			Rate:          cfg.Speech.Rate,
			Logger:        logger,
		})
	}

	engine, err := drill.New(drill.Config{
		Source:          source,
		Media:           drill.AudioMedia{Backend: backend},
		Generator:       generator,
		GenerateTimeout: cfg.Generate.Timeout,
		Speaker:         speaker,
		FillerRef:       cfg.Filler.URL,
		FillerText:      cfg.Filler.Text,
		FillerLocale:    cfg.Filler.Locale,
		FallbackDelay:   cfg.Filler.FallbackDelay,
		Timings:         cfg.Timings,
		Hooks:           hooks,
		Logger:          logger,
	})
	if err != nil {
		_ = clips.Close()
		return nil, fmt.Errorf("unable to create drill: %w", err)
	}

	return &drillRuntime{engine: engine, clips: clips}, nil
}

// Close stops the drill and flushes the clip cache.
func (d *drillRuntime) Close() error {
	d.engine.Stop()
	d.engine.Wait()

	for level, st := range d.clips.Stats() {
		log.Debug("Clip cache", "level", level, "clips", st.Clips, "size", humanize.IBytes(uint64(st.Size)), "hit_rate", fmt.Sprintf("%.0f%%", st.HitRate()*100)) //nolint:gosec
	}
	return d.clips.Close()
}

func newClipCache(cfg config.CacheConfig, logger *log.Logger) (*cache.Clips, error) {
	cc := cache.Config{
		MemoryCapacity:   int64(cfg.MemoryMB) << 20,
		DiskCapacity:     int64(cfg.DiskMB) << 20,
		CompressionLevel: cfg.Level,
		TTL:              cfg.TTL,
		Logger:           logger,
	}
	if cfg.DiskMB > 0 {
		cc.Dir = cfg.Dir
	}
	clips, err := cache.New(cc)
	if err != nil {
		return nil, fmt.Errorf("unable to open clip cache: %w", err)
	}
	return clips, nil
}

func newSource(cfg config.SourceConfig, logger *log.Logger) (lesson.Source, error) {
	if cfg.Lessons != "" {
		src, err := lesson.LoadFileSource(cfg.Lessons)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded lesson deck", "path", cfg.Lessons, "lessons", src.Len())
		return src, nil
	}

	src, err := lesson.NewHTTPSource(httpConfig(cfg, logger))
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newGenerator(cfg config.Config, pcfg processConfig, logger *log.Logger) (lesson.Generator, error) {
	switch cfg.Generate.Mode {
	case config.GenerateService:
		if cfg.Source.URL == "" {
			return nil, errors.New("clip generation by the lesson service needs a lesson service URL")
		}
		g, err := lesson.NewHTTPGenerator(httpConfig(cfg.Source, logger))
		if err != nil {
			return nil, err
		}
		return g, nil

	case config.GenerateOpenAI:
		g, err := lesson.NewOpenAIGenerator(lesson.OpenAIConfig{
			APIKey: pcfg.OpenAIKey,
			Model:  cfg.Generate.OpenAIModel,
			Voice:  cfg.Generate.OpenAIVoice,
			Speed:  cfg.Generate.OpenAISpeed,
			Dir:    cfg.Generate.Dir,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return g, nil

	default:
		return nil, nil //nolint:nilnil
	}
}

func httpConfig(cfg config.SourceConfig, logger *log.Logger) lesson.HTTPConfig {
	return lesson.HTTPConfig{
		BaseURL:           cfg.URL,
		Token:             cfg.Token,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Paths: lesson.Paths{
			Random:   cfg.RandomPath,
			Generate: cfg.GeneratePath,
			Filler:   cfg.FillerPath,
		},
		Logger: logger,
	}
}
