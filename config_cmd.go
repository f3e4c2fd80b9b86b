package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Lessons come from a YAML deck or from the lesson service, not both.
source:
  # lessons: "~/drills/french.yml"
  # url: "https://drill.example.com"
  # token: ""
  timeout: 10s
  requests_per_minute: 60
  # Endpoint paths, for services that use other routes.
  # random_path: "/api/phrases/random"
  # generate_path: "/api/phrases/generate-audio"
  # filler_path: "/api/audio/nouvelle-phrase"

# Clip generation for lessons that arrive without audio: off, service or openai.
# openai needs OPENAI_API_KEY.
generate:
  mode: "off"
  timeout: 15s
  # dir: "~/.local/share/echodrill/clips"
  openai_model: "tts-1"
  openai_voice: "alloy"

# Announcement between lessons. Without a url the lesson service is asked
# for one; when nothing plays the text is spoken instead.
filler:
  # url: "https://cdn.example.com/filler.mp3"
  text: "nouvelle phrase"
  locale: "fr-FR"
  fallback_delay: 1s

# Silences of the drill cycle.
timings:
  pause_short: 2s
  pause_repeat_short: 5s
  pause_repeat_long: 10s
  pause_before_filler: 5s
  pause_after_filler: 2s

audio:
  # 44100 or 48000
  sample_rate: 44100
  # buffer_size: 50ms
  preload_timeout: 5s
  min_playable_bytes: 16384

# Local speech used for the filler fallback.
speech:
  enabled: true
  commands: ["espeak-ng", "espeak"]
  rate: 0.8

# Downloaded clips. Set disk_mb to 0 to keep them in memory only.
cache:
  # dir: "~/.cache/echodrill/clips"
  memory_mb: 64
  disk_mb: 512
  level: 3
  ttl: 720h
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the echodrill config file",
	Long:    paragraph(fmt.Sprintf("\n%s the echodrill config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("echodrill config\nechodrill config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Echodrill", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
