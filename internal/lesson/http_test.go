package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSource(t *testing.T, h http.HandlerFunc) (*HTTPSource, *HTTPGenerator) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := HTTPConfig{BaseURL: srv.URL, Token: "secret", RequestsPerMinute: 6000}
	src, err := NewHTTPSource(cfg)
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}
	gen, err := NewHTTPGenerator(cfg)
	if err != nil {
		t.Fatalf("NewHTTPGenerator failed: %v", err)
	}
	return src, gen
}

func TestHTTPSource_FetchRandomLesson(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != randomLessonPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "p1",
			"nativePhrase":   "Bonjour",
			"targetPhrase":   "Hello",
			"category":       "greetings",
			"nativeAudioUrl": "https://cdn.example.com/p1.fr.mp3",
			"targetAudioUrl": "https://cdn.example.com/p1.en.mp3",
		})
	})

	l, err := src.FetchRandomLesson(context.Background())
	if err != nil {
		t.Fatalf("FetchRandomLesson failed: %v", err)
	}
	if l.ID != "p1" || l.NativeText != "Bonjour" || l.TargetText != "Hello" || l.Category != "greetings" {
		t.Errorf("unexpected lesson: %+v", l)
	}
	if !l.Playable() {
		t.Error("lesson with both clips should be playable")
	}
}

func TestHTTPSource_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})
			_, err := src.FetchRandomLesson(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPSource_ServerErrorMessage(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
	})

	_, err := src.FetchRandomLesson(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); !strings.Contains(got, "database unavailable") {
		t.Errorf("error %q should carry the service message", got)
	}
}

func TestHTTPSource_FillerClipURL(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != fillerClipPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/filler.mp3"}`))
	})

	u, err := src.FillerClipURL(context.Background())
	if err != nil {
		t.Fatalf("FillerClipURL failed: %v", err)
	}
	if u != "https://cdn.example.com/filler.mp3" {
		t.Errorf("FillerClipURL = %q", u)
	}
}

func TestHTTPGenerator_GenerateClips(t *testing.T) {
	_, gen := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != generateClipPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.PhraseID != "p2" || req.TargetPhrase != "Thanks" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"nativeAudioUrl":"https://cdn/n.mp3","targetAudioUrl":"https://cdn/t.mp3"}`))
	})

	in := Lesson{ID: "p2", NativeText: "Merci", TargetText: "Thanks", NativeClipRef: "https://cdn/keep.mp3"}
	out, err := gen.GenerateClips(context.Background(), in)
	if err != nil {
		t.Fatalf("GenerateClips failed: %v", err)
	}
	if out.NativeClipRef != "https://cdn/keep.mp3" {
		t.Errorf("existing native clip should be kept, got %q", out.NativeClipRef)
	}
	if out.TargetClipRef != "https://cdn/t.mp3" {
		t.Errorf("TargetClipRef = %q", out.TargetClipRef)
	}
	if in.TargetClipRef != "" {
		t.Error("input lesson must not be mutated")
	}
}

func TestHTTPGenerator_PartialResult(t *testing.T) {
	_, gen := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nativeAudioUrl":"https://cdn/n.mp3","targetAudioUrl":null}`))
	})

	out, err := gen.GenerateClips(context.Background(), Lesson{ID: "p3", NativeText: "Oui", TargetText: "Yes"})
	if !errors.Is(err, ErrMissingClip) {
		t.Fatalf("error = %v, want ErrMissingClip", err)
	}
	if out.NativeClipRef != "https://cdn/n.mp3" {
		t.Errorf("partial result should keep the native clip, got %q", out.NativeClipRef)
	}
}

func TestHTTPSource_FrenchFieldsAndPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/phrases/random":
			_, _ = w.Write([]byte(`{"id":"fr1","frenchPhrase":"Bonsoir","englishPhrase":"Good evening",` +
				`"category":"greetings","audioUrlFr":"https://cdn/fr1.fr.mp3","audioUrlEn":null}`))
		case "/api/audio/nouvelle-phrase":
			_, _ = w.Write([]byte(`{"url":"https://cdn/nouvelle_phrase.mp3"}`))
		case "/api/phrases/generate-audio":
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.FrenchPhrase != "Bonsoir" || req.EnglishPhrase != "Good evening" {
				t.Errorf("request lacks the French field set: %+v", req)
			}
			_, _ = w.Write([]byte(`{"audioUrlFr":null,"audioUrlEn":"https://cdn/fr1.en.mp3"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := HTTPConfig{
		BaseURL:           srv.URL,
		RequestsPerMinute: 6000,
		Paths:             Paths{Filler: "/api/audio/nouvelle-phrase"},
	}
	src, err := NewHTTPSource(cfg)
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}
	gen, err := NewHTTPGenerator(cfg)
	if err != nil {
		t.Fatalf("NewHTTPGenerator failed: %v", err)
	}

	l, err := src.FetchRandomLesson(context.Background())
	if err != nil {
		t.Fatalf("FetchRandomLesson failed: %v", err)
	}
	want := Lesson{ID: "fr1", NativeText: "Bonsoir", TargetText: "Good evening", Category: "greetings", NativeClipRef: "https://cdn/fr1.fr.mp3"}
	if l != want {
		t.Errorf("lesson = %+v, want %+v", l, want)
	}

	out, err := gen.GenerateClips(context.Background(), l)
	if err != nil {
		t.Fatalf("GenerateClips failed: %v", err)
	}
	if out.NativeClipRef != "https://cdn/fr1.fr.mp3" || out.TargetClipRef != "https://cdn/fr1.en.mp3" {
		t.Errorf("generated clips = %q, %q", out.NativeClipRef, out.TargetClipRef)
	}

	u, err := src.FillerClipURL(context.Background())
	if err != nil {
		t.Fatalf("FillerClipURL failed: %v", err)
	}
	if u != "https://cdn/nouvelle_phrase.mp3" {
		t.Errorf("FillerClipURL = %q", u)
	}
}

func TestNewHTTPSource_InvalidConfig(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := NewHTTPSource(HTTPConfig{BaseURL: base}); err == nil {
			t.Errorf("expected error for base URL %q", base)
		}
	}
}
