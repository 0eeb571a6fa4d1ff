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

const defaultConfig = `# start with sound on; edits apply while wordsprout is running
sound:
  enabled: true

# speech engine: auto, espeak, google or none
speech:
  engine: "auto"

# quiet period between two unlocking gestures
gesture:
  debounce: "400ms"

# in-memory asset cache and the on-disk recording store
cache:
  max_entries: 50
  max_bytes: 33554432
  fetch_timeout: "10s"
  # dir: "~/.cache/wordsprout/assets"
  disk_max_bytes: 268435456
  # zstd level 1-22, 0 stores recordings uncompressed
  compression_level: 3

# where recordings are fetched from (http, https or file URLs)
assets:
  base_url: ""
  requests_per_minute: 120

playback:
  attempt_timeout: "15s"
  # how long a word is shown when no audio is possible
  text_display: "2s"

diagnostics:
  capacity: 1000

# network hint for quality decisions: offline, 2g, 3g, 4g or wifi
network: ""
# word list file; empty uses the built-in words
catalog: ""
# mouse support (practice mode only)
mouse: false

# serve Prometheus metrics, e.g. "localhost:9464"
metrics:
  addr: ""
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the wordsprout config file",
	Long:    paragraph(fmt.Sprintf("\n%s the wordsprout config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("wordsprout config\nwordsprout config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Wordsprout", configFile)
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
