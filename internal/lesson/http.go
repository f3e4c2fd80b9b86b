package lesson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	randomLessonPath = "/api/phrases/random"
	generateClipPath = "/api/phrases/generate-audio"
	fillerClipPath   = "/api/audio/filler"

	// maxErrorBody bounds how much of an error response we keep for messages.
	maxErrorBody = 4 << 10
)

// HTTPConfig configures the lesson service client.
type HTTPConfig struct {
	// BaseURL of the lesson service, e.g. "https://drill.example.com".
	BaseURL string

	// Token, when set, is sent as a bearer token.
	Token string

	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration

	// RequestsPerMinute rate limits calls to the service. Defaults to 60.
	RequestsPerMinute int

	// Paths overrides the endpoint paths.
	Paths Paths

	// Client overrides the HTTP client (tests).
	Client *http.Client

	Logger *log.Logger
}

// Paths locates the lesson service endpoints. Empty fields keep the
// defaults.
type Paths struct {
	Random   string
	Generate string
	Filler   string
}

func (p *Paths) setDefaults() {
	if p.Random == "" {
		p.Random = randomLessonPath
	}
	if p.Generate == "" {
		p.Generate = generateClipPath
	}
	if p.Filler == "" {
		p.Filler = fillerClipPath
	}
}

// client is the shared plumbing of HTTPSource and HTTPGenerator.
type client struct {
	base    *url.URL
	paths   Paths
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

func newClient(cfg HTTPConfig) (*client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("lesson service base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lesson service URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%s is not a supported protocol", base.Scheme)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	cfg.Paths.setDefaults()

	return &client{
		base:    base,
		paths:   cfg.Paths,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    cfg.Client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 2),
		logger:  cfg.Logger,
	}, nil
}

// do sends one JSON request and decodes a JSON response into out.
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("lesson service", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", path, ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: HTTP status %d: %s", path, resp.StatusCode, errorMessage(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: unable to decode response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a response body, falling back
// to the raw text.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(b))
}

// HTTPSource fetches lessons from the lesson service.
type HTTPSource struct {
	c *client
}

// NewHTTPSource creates a lesson source backed by the lesson service.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPSource{c: c}, nil
}

// FetchRandomLesson implements Source.
func (s *HTTPSource) FetchRandomLesson(ctx context.Context) (Lesson, error) {
	var p phrase
	if err := s.c.do(ctx, http.MethodGet, s.c.paths.Random, nil, &p); err != nil {
		return Lesson{}, err
	}
	if p.ID == "" {
		return Lesson{}, fmt.Errorf("lesson service returned a lesson without id: %w", ErrNotFound)
	}
	return p.lesson(), nil
}

// FillerClipURL implements FillerLocator.
func (s *HTTPSource) FillerClipURL(ctx context.Context) (string, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := s.c.do(ctx, http.MethodGet, s.c.paths.Filler, nil, &payload); err != nil {
		return "", err
	}
	if payload.URL == "" {
		return "", fmt.Errorf("%s: empty url: %w", s.c.paths.Filler, ErrNotFound)
	}
	return payload.URL, nil
}

// HTTPGenerator asks the lesson service to synthesize missing clips.
type HTTPGenerator struct {
	c *client
}

// NewHTTPGenerator creates a generator backed by the lesson service.
func NewHTTPGenerator(cfg HTTPConfig) (*HTTPGenerator, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPGenerator{c: c}, nil
}

// phrase is a lesson as the service sends it. Services speak one of two
// field sets: the native/target one, or the French/English one of the
// French drill service, where French is the native side.
type phrase struct {
	ID       string `json:"id"`
	Category string `json:"category"`

	NativePhrase   string  `json:"nativePhrase"`
	TargetPhrase   string  `json:"targetPhrase"`
	NativeAudioURL *string `json:"nativeAudioUrl"`
	TargetAudioURL *string `json:"targetAudioUrl"`

	FrenchPhrase  string  `json:"frenchPhrase"`
	EnglishPhrase string  `json:"englishPhrase"`
	AudioURLFr    *string `json:"audioUrlFr"`
	AudioURLEn    *string `json:"audioUrlEn"`
}

func (p phrase) lesson() Lesson {
	return Lesson{
		ID:            p.ID,
		Category:      p.Category,
		NativeText:    first(p.NativePhrase, p.FrenchPhrase),
		TargetText:    first(p.TargetPhrase, p.EnglishPhrase),
		NativeClipRef: first(deref(p.NativeAudioURL), deref(p.AudioURLFr)),
		TargetClipRef: first(deref(p.TargetAudioURL), deref(p.AudioURLEn)),
	}
}

// generateRequest carries both field sets so either kind of service can
// read it.
type generateRequest struct {
	PhraseID      string `json:"phraseId"`
	NativePhrase  string `json:"nativePhrase"`
	TargetPhrase  string `json:"targetPhrase"`
	FrenchPhrase  string `json:"frenchPhrase"`
	EnglishPhrase string `json:"englishPhrase"`
}

type generateResponse struct {
	NativeAudioURL *string `json:"nativeAudioUrl"`
	TargetAudioURL *string `json:"targetAudioUrl"`
	AudioURLFr     *string `json:"audioUrlFr"`
	AudioURLEn     *string `json:"audioUrlEn"`
}

// GenerateClips implements Generator. Clip refs already on l are kept; the
// service may fill only one of the two.
func (g *HTTPGenerator) GenerateClips(ctx context.Context, l Lesson) (Lesson, error) {
	if l.Playable() {
		return l, nil
	}
	if l.ID == "" || l.NativeText == "" || l.TargetText == "" {
		return l, errors.New("lesson is missing id or text")
	}

	var resp generateResponse
	req := generateRequest{
		PhraseID:      l.ID,
		NativePhrase:  l.NativeText,
		TargetPhrase:  l.TargetText,
		FrenchPhrase:  l.NativeText,
		EnglishPhrase: l.TargetText,
	}
	if err := g.c.do(ctx, http.MethodPost, g.c.paths.Generate, req, &resp); err != nil {
		return l, err
	}

	out := merge(l,
		first(deref(resp.NativeAudioURL), deref(resp.AudioURLFr)),
		first(deref(resp.TargetAudioURL), deref(resp.AudioURLEn)),
	)
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ Source        = (*HTTPSource)(nil)
	_ FillerLocator = (*HTTPSource)(nil)
	_ Generator     = (*HTTPGenerator)(nil)
)
