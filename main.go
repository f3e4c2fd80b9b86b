// Package main provides the entry point for the echodrill CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/config"
	"github.com/dgnsrekt/echodrill/ui"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	plain      bool
	autoStart  bool
	debug      bool
	drillCfg   config.Config

	rootCmd = &cobra.Command{
		Use:   "echodrill",
		Short: "Hands-free listen and repeat language drills",
		Long: paragraph(
			fmt.Sprintf("\nPlays a phrase in your language, then twice in the one you are learning, %s.", keyword("leaving you time to repeat")),
		),
		Example: paragraph("echodrill --lessons french.yml\n" +
			"echodrill --source https://drill.example.com --generate service\n" +
			"echodrill --lessons french.yml --plain"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	// The config and man commands don't drill.
	if cmd.HasParent() {
		return nil
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}

	plain = viper.GetBool("plain")
	autoStart = viper.GetBool("autostart")
	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := setDefaultDirs(&cfg); err != nil {
		return err
	}
	drillCfg = cfg

	// Without a terminal there is nothing to drive a TUI.
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		plain = true
	}
	return nil
}

// setDefaultDirs places the clip cache and generated clips in the user's
// cache and data directories unless configured.
func setDefaultDirs(cfg *config.Config) error {
	scope := gap.NewScope(gap.User, "echodrill")

	if cfg.Cache.Dir == "" && cfg.Cache.DiskMB > 0 {
		dir, err := scope.CacheDir()
		if err != nil {
			return fmt.Errorf("unable to find cache directory: %w", err)
		}
		cfg.Cache.Dir = filepath.Join(dir, "clips")
	}
	if cfg.Generate.Dir == "" && cfg.Generate.Mode == config.GenerateOpenAI {
		p, err := scope.DataPath("clips")
		if err != nil {
			return fmt.Errorf("unable to find data directory: %w", err)
		}
		cfg.Generate.Dir = p
	}
	return nil
}

func execute(*cobra.Command, []string) error {
	pcfg, err := env.ParseAs[processConfig]()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if plain {
		return runPlain(ctx, drillCfg, pcfg)
	}
	return runTUI(ctx, drillCfg, pcfg)
}

func runTUI(ctx context.Context, cfg config.Config, pcfg processConfig) error {
	// Read environment to get display settings
	ucfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	ucfg.AutoStart = autoStart
	ucfg.Timings = cfg.Timings

	events := ui.NewEvents()
	d, err := newDrill(cfg, pcfg, events.Hooks())
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck

	p := ui.NewProgram(ctx, ucfg, d.engine, events)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Run Bubble Tea program
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringP("lessons", "l", "", "YAML lesson deck")
	rootCmd.Flags().StringP("source", "s", "", "lesson service URL")
	rootCmd.Flags().String("filler-url", "", "clip announcing the next phrase")
	rootCmd.Flags().StringP("generate", "g", "", "generate missing clips: off, service or openai")
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "print phases instead of running the TUI")
	rootCmd.Flags().BoolVarP(&autoStart, "start", "y", false, "start drilling right away (TUI-mode only)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log debug messages")
	_ = rootCmd.Flags().MarkHidden("debug")

	// Config bindings
	_ = viper.BindPFlag("source.lessons", rootCmd.Flags().Lookup("lessons"))
	_ = viper.BindPFlag("source.url", rootCmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("filler.url", rootCmd.Flags().Lookup("filler-url"))
	_ = viper.BindPFlag("generate.mode", rootCmd.Flags().Lookup("generate"))
	_ = viper.BindPFlag("plain", rootCmd.Flags().Lookup("plain"))
	_ = viper.BindPFlag("autostart", rootCmd.Flags().Lookup("start"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	viper.SetDefault("plain", false)
	viper.SetDefault("autostart", false)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "echodrill")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "echodrill")}, dirs...)
	}

	if c := os.Getenv("ECHODRILL_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("echodrill")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("echodrill")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "echodrill.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
