package lesson

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures OpenAIGenerator.
type OpenAIConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// Model defaults to tts-1, Voice to alloy.
	Model string
	Voice string

	// Speed of the generated speech; 0 leaves the API default.
	Speed float64

	// Dir receives the generated MP3 files. Required.
	Dir string

	// RequestsPerMinute rate limits synthesis calls. Defaults to 50.
	RequestsPerMinute int

	Logger *log.Logger
}

// OpenAIGenerator synthesizes missing clips with the OpenAI speech API and
// stores them as local files, returning file:// refs.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	voice   string
	speed   float64
	dir     string
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewOpenAIGenerator creates a generator that writes clips into cfg.Dir.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required (set OPENAI_API_KEY)")
	}
	if cfg.Dir == "" {
		return nil, errors.New("clip directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create clip directory: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		voice:   cfg.Voice,
		speed:   cfg.Speed,
		dir:     cfg.Dir,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  cfg.Logger,
	}, nil
}

// GenerateClips implements Generator.
func (g *OpenAIGenerator) GenerateClips(ctx context.Context, l Lesson) (Lesson, error) {
	var errs []error

	if l.NativeClipRef == "" {
		ref, err := g.clip(ctx, l.NativeText)
		if err != nil {
			errs = append(errs, fmt.Errorf("native clip: %w", err))
		}
		l.NativeClipRef = ref
	}
	if l.TargetClipRef == "" {
		ref, err := g.clip(ctx, l.TargetText)
		if err != nil {
			errs = append(errs, fmt.Errorf("target clip: %w", err))
		}
		l.TargetClipRef = ref
	}

	return l, errors.Join(errs...)
}

// clip returns a file:// ref for text, synthesizing it unless an earlier run
// already stored it.
func (g *OpenAIGenerator) clip(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errors.New("text cannot be empty")
	}

	path := filepath.Join(g.dir, g.fileName(text))
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		return "file://" + path, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	start := time.Now()
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.model),
		Input:          text,
		Voice:          openai.SpeechVoice(g.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          g.speed,
	})
	if err != nil {
		return "", fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("unable to read synthesized audio: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("speech synthesis returned no audio")
	}

	// Clips only appear under their final name once complete.
	tmp, err := os.CreateTemp(g.dir, "clip-*.tmp")
	if err != nil {
		return "", fmt.Errorf("unable to create clip file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("unable to write clip file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("unable to write clip file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("unable to store clip file: %w", err)
	}

	g.logger.Debug("Clip generated", "text", text, "size", humanize.Bytes(uint64(len(data))), "took", time.Since(start)) //nolint:gosec
	return "file://" + path, nil
}

func (g *OpenAIGenerator) fileName(text string) string {
	sum := sha256.Sum256([]byte(g.model + "|" + g.voice + "|" + text))
	return hex.EncodeToString(sum[:12]) + ".mp3"
}

var _ Generator = (*OpenAIGenerator)(nil)
