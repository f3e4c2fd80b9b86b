package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Fetcher opens clip references: http and https URLs, file URLs and plain
// paths.
type Fetcher struct {
	Client *http.Client
}

// Open starts reading ref. size is the expected length, or -1 when unknown.
func (f *Fetcher) Open(ctx context.Context, ref string) (body io.ReadCloser, size int64, err error) {
	if ref == "" {
		return nil, -1, errors.New("empty clip reference")
	}

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.openHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, -1, fmt.Errorf("invalid clip reference %q: %w", ref, err)
		}
		return openFile(u.Path)
	case strings.Contains(ref, "://"):
		return nil, -1, fmt.Errorf("%s is not a supported protocol", ref[:strings.Index(ref, "://")])
	default:
		return openFile(ref)
	}
}

func (f *Fetcher) openHTTP(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("unable to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("unable to fetch clip: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, -1, fmt.Errorf("unable to fetch clip: HTTP status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func openFile(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, -1, fmt.Errorf("unable to open clip: %w", err)
	}
	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return f, size, nil
}
