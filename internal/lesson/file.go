package lesson

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// deck is the on-disk YAML layout of a FileSource.
//
//	filler: https://cdn.example.com/filler.mp3
//	lessons:
//	  - id: greet-1
//	    native: Bonjour
//	    target: Hello
//	    native_clip: https://cdn.example.com/greet-1.fr.mp3
//	    target_clip: https://cdn.example.com/greet-1.en.mp3
type deck struct {
	Filler  string   `yaml:"filler,omitempty"`
	Lessons []Lesson `yaml:"lessons"`
}

// FileSource serves lessons from a YAML deck. Relative clip paths are
// resolved against the deck's directory.
type FileSource struct {
	path    string
	filler  string
	lessons []Lesson

	mu  sync.Mutex
	rnd *rand.Rand
}

// LoadFileSource reads and validates a YAML deck.
func LoadFileSource(path string) (*FileSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read lesson deck: %w", err)
	}
	return ParseFileSource(path, b)
}

// ParseFileSource builds a FileSource from YAML bytes; path is used to
// resolve relative clip paths and in messages.
func ParseFileSource(path string, b []byte) (*FileSource, error) {
	var d deck
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("unable to parse lesson deck %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range d.Lessons {
		l := &d.Lessons[i]
		if l.ID == "" {
			l.ID = strconv.Itoa(i + 1)
		}
		if l.NativeText == "" || l.TargetText == "" {
			return nil, fmt.Errorf("lesson deck %s: lesson %s is missing text", path, l.ID)
		}
		l.NativeClipRef = resolveRef(dir, l.NativeClipRef)
		l.TargetClipRef = resolveRef(dir, l.TargetClipRef)
	}

	return &FileSource{
		path:    path,
		filler:  resolveRef(dir, d.Filler),
		lessons: d.Lessons,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec
	}, nil
}

// resolveRef turns a relative file path into an absolute one; URLs and
// absolute paths are returned unchanged.
func resolveRef(dir, ref string) string {
	if ref == "" || isURL(ref) || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dir, ref)
}

func isURL(ref string) bool {
	for _, prefix := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of lessons in the deck.
func (s *FileSource) Len() int {
	return len(s.lessons)
}

// FetchRandomLesson implements Source.
func (s *FileSource) FetchRandomLesson(ctx context.Context) (Lesson, error) {
	if err := ctx.Err(); err != nil {
		return Lesson{}, err
	}
	if len(s.lessons) == 0 {
		return Lesson{}, fmt.Errorf("lesson deck %s: %w", s.path, ErrNotFound)
	}

	s.mu.Lock()
	i := s.rnd.IntN(len(s.lessons))
	s.mu.Unlock()

	return s.lessons[i], nil
}

// FillerClipURL implements FillerLocator.
func (s *FileSource) FillerClipURL(context.Context) (string, error) {
	if s.filler == "" {
		return "", fmt.Errorf("lesson deck %s has no filler clip: %w", s.path, ErrNotFound)
	}
	return s.filler, nil
}

var (
	_ Source        = (*FileSource)(nil)
	_ FillerLocator = (*FileSource)(nil)
)
