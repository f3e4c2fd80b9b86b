package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultCommands are tried in order when no command is configured.
var DefaultCommands = []string{"espeak-ng", "espeak"}

// ErrUnavailable is returned when no speech command can be found.
var ErrUnavailable = errors.New("no speech command available")

// espeak speaks at 175 words per minute by default.
const baseWordsPerMinute = 175

// CommandRenderer renders speech with an espeak compatible command:
//
//	<cmd> -v <voice> -s <wpm> -w <file.wav> <text>
type CommandRenderer struct {
	// Commands to look up on PATH, first found wins. Defaults to DefaultCommands.
	Commands []string

	// TempDir receives the intermediate WAV file. Defaults to os.TempDir().
	TempDir string

	// Timeout bounds one rendering. Defaults to 10s.
	Timeout time.Duration
}

// Path returns the command that would be used.
func (r *CommandRenderer) Path() (string, error) {
	cmds := r.Commands
	if len(cmds) == 0 {
		cmds = DefaultCommands
	}
	for _, name := range cmds {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrUnavailable, strings.Join(cmds, ", "))
}

// Render implements Renderer.
func (r *CommandRenderer) Render(ctx context.Context, text string, tag language.Tag, rate float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}
	path, err := r.Path()
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := os.CreateTemp(r.TempDir, "speech-*.wav")
	if err != nil {
		return nil, fmt.Errorf("unable to create speech file: %w", err)
	}
	_ = out.Close()
	defer os.Remove(out.Name()) //nolint:errcheck

	args := []string{
		"-v", voice(tag),
		"-s", strconv.Itoa(wordsPerMinute(rate)),
		"-w", out.Name(),
		text,
	}
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader("")
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("speech command interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("speech command failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	wav, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("unable to read speech file: %w", err)
	}
	if len(wav) == 0 {
		return nil, fmt.Errorf("speech command produced no audio, stderr: %s", strings.TrimSpace(stderr.String()))
	}
	return wav, nil
}

// voice maps a locale to an espeak voice name: the base language, plus the
// region when there is one ("fr-fr", "en-us").
func voice(tag language.Tag) string {
	base, conf := tag.Base()
	if conf == language.No {
		return "en"
	}
	v := base.String()
	if region, conf := tag.Region(); conf == language.Exact {
		v += "-" + strings.ToLower(region.String())
	}
	return v
}

func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	wpm := int(baseWordsPerMinute * rate)
	return max(80, min(wpm, 450))
}
