package audio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFetcher_Open(t *testing.T) {
	clip := testWAV(44100, 10)
	srv, _ := clipServer(t, clip)

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(path, clip, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"http", srv.URL + "/clip.wav", false},
		{"http not found", srv.URL + "/missing.wav", true},
		{"file url", "file://" + path, false},
		{"plain path", path, false},
		{"missing file", filepath.Join(dir, "nope.wav"), true},
		{"unsupported scheme", "ftp://example.com/clip.wav", true},
		{"empty", "", true},
	}

	f := &Fetcher{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, size, err := f.Open(context.Background(), tt.ref)
			if tt.wantErr {
				if err == nil {
					_ = body.Close()
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer body.Close() //nolint:errcheck

			data, err := io.ReadAll(body)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(data) != len(clip) {
				t.Errorf("read %d bytes, want %d", len(data), len(clip))
			}
			if size != int64(len(clip)) {
				t.Errorf("size = %d, want %d", size, len(clip))
			}
		})
	}
}
