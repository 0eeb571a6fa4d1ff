// Package main provides the entry point for the wordsprout CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/wordsprout/wordsprout/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	mouse      bool
	category   string
	closeLog   = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "wordsprout",
		Short: "Practice words out loud, even when the speakers won't cooperate",
		Long: paragraph(
			fmt.Sprintf("\nPractice vocabulary %s. Words are spoken by a speech engine, played from a recording, or shown as text when no audio is possible.",
				keyword("out loud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			closer, err := setupLog(viper.GetBool("debug"))
			if err != nil {
				return err
			}
			closeLog = closer
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	mouse = viper.GetBool("mouse")
	category = viper.GetString("category")

	opts := loadOptions()
	return opts.validate()
}

func execute(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("practice mode needs a terminal; try `wordsprout say <word>`")
	}
	return runTUI(cmd)
}

func runTUI(cmd *cobra.Command) error {
	// Read environment to get UI preferences
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.EnableMouse = mouse
	cfg.Category = category

	a, err := newApp(cmd.Context(), loadOptions())
	if err != nil {
		return err
	}
	defer a.close() //nolint:errcheck

	if _, err := ui.NewProgram(cfg, a.svc, a.catalog).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
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

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write a debug log")
	rootCmd.PersistentFlags().String("speech", "", "speech engine: auto, espeak, google or none")
	rootCmd.PersistentFlags().String("network", "", "network hint: offline, 2g, 3g, 4g or wifi")
	rootCmd.PersistentFlags().String("user-agent", "", "emulate a browser user agent")
	_ = rootCmd.PersistentFlags().MarkHidden("user-agent")
	rootCmd.PersistentFlags().Bool("mute", false, "start with sound disabled")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support")
	rootCmd.Flags().StringVarP(&category, "category", "c", "", "only practice words of this category")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("speech.engine", rootCmd.PersistentFlags().Lookup("speech"))
	_ = viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	_ = viper.BindPFlag("user_agent", rootCmd.PersistentFlags().Lookup("user-agent"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("category", rootCmd.Flags().Lookup("category"))
	_ = viper.BindPFlag("mute", rootCmd.PersistentFlags().Lookup("mute"))
	_ = viper.BindEnv("debug", "WORDSPROUT_DEBUG")

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, sayCmd, detectCmd, statsCmd, logsCmd, preloadCmd)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sound.enabled", true)
	v.SetDefault("gesture.debounce", 400*time.Millisecond)
	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.max_bytes", 32<<20)
	v.SetDefault("cache.fetch_timeout", 10*time.Second)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.disk_max_bytes", 256<<20)
	v.SetDefault("cache.compression_level", 3)
	v.SetDefault("assets.base_url", "")
	v.SetDefault("assets.requests_per_minute", 120)
	v.SetDefault("speech.engine", "auto")
	v.SetDefault("playback.attempt_timeout", 15*time.Second)
	v.SetDefault("playback.text_display", 2*time.Second)
	v.SetDefault("diagnostics.capacity", 1000)
	v.SetDefault("network", "")
	v.SetDefault("memory_gb", 0)
	v.SetDefault("catalog", "")
	v.SetDefault("metrics.addr", "")
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "wordsprout")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "wordsprout")}, dirs...)
	}

	if c := os.Getenv("WORDSPROUT_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("wordsprout")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("wordsprout")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		configFile = used
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "wordsprout.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
