// Package config provides CLI commands for managing drawbridge configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/drawbridge/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify drawbridge configuration",
	Long: `View or modify drawbridge configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  drawbridge config set server.port 8080
  drawbridge config set diagrams.default_format xml
  drawbridge config set session.export_timeout 10s

Valid keys:
  server.port                  - Port of the asset server (1-65535)
  server.root_dir              - Directory holding the editor bundle
  server.dark                  - Start the editor in dark mode (true/false)
  vault.root                   - Root of the markdown vault
  diagrams.folder              - Vault folder for new diagrams
  diagrams.default_format      - Container for new diagrams
                                 Options: svg, xml
  diagrams.use_markdown_links  - Embed with ![](path) instead of ![[path]] (true/false)
  diagrams.default_size        - Size suffix for wiki embeds, e.g. 400 or 400x300
  diagrams.create_on_open      - Create the file when a session opens (true/false)
  session.export_timeout       - How long to wait for an export reply (e.g. 5s)
  session.rate_limit           - Inbound messages per second per session
  session.rate_burst           - Inbound message burst per session
  watch.enabled                - Watch the diagrams folder (true/false)
  logging.enabled              - Write the log file (true/false)
  logging.level                - Minimum level: debug, info, warn, error
  logging.max_size_mb          - Rotate the log at this size
  logging.max_backups          - Rotated logs to keep`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/drawbridge/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  drawbridge config reset               # Reset all to defaults
  drawbridge config reset server.port   # Reset only server.port to default`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyTypes lists the keys 'config set' accepts and how their values parse.
var keyTypes = map[string]string{
	"server.port":                 "port",
	"server.root_dir":             "string",
	"server.dark":                 "bool",
	"vault.root":                  "string",
	"diagrams.folder":             "string",
	"diagrams.default_format":     "format",
	"diagrams.use_markdown_links": "bool",
	"diagrams.default_size":       "string",
	"diagrams.create_on_open":     "bool",
	"session.export_timeout":      "duration",
	"session.rate_limit":          "float",
	"session.rate_burst":          "int",
	"watch.enabled":               "bool",
	"logging.enabled":             "bool",
	"logging.level":               "level",
	"logging.max_size_mb":         "int",
	"logging.max_backups":         "int",
}

// defaultValues maps every settable key to its default.
func defaultValues() map[string]any {
	d := appconfig.Default()
	return map[string]any{
		"server.port":                 d.Server.Port,
		"server.root_dir":             d.Server.RootDir,
		"server.dark":                 d.Server.Dark,
		"vault.root":                  d.Vault.Root,
		"diagrams.folder":             d.Diagrams.Folder,
		"diagrams.default_format":     d.Diagrams.DefaultFormat,
		"diagrams.use_markdown_links": d.Diagrams.UseMarkdownLinks,
		"diagrams.default_size":       d.Diagrams.DefaultSize,
		"diagrams.create_on_open":     d.Diagrams.CreateOnOpen,
		"session.export_timeout":      d.Session.ExportTimeout.String(),
		"session.rate_limit":          d.Session.RateLimit,
		"session.rate_burst":          d.Session.RateBurst,
		"watch.enabled":               d.Watch.Enabled,
		"logging.enabled":             d.Logging.Enabled,
		"logging.level":               d.Logging.Level,
		"logging.max_size_mb":         d.Logging.MaxSizeMB,
		"logging.max_backups":         d.Logging.MaxBackups,
	}
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown configuration key: %s\nRun 'drawbridge config set --help' to see valid keys", key)
}

// parseValue converts a command-line value for key into the type stored in
// the config file.
func parseValue(key, value string) (any, error) {
	keyType, ok := keyTypes[key]
	if !ok {
		return nil, unknownKey(key)
	}

	switch keyType {
	case "format":
		if !appconfig.IsValidFormat(value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidFormats(), ", "))
		}
		return value, nil
	case "level":
		value = strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return value, nil
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case "port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid value for %s: expected a port between 1 and 65535", key)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid value for %s: expected a positive number", key)
		}
		return f, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid value for %s: expected a positive duration like 5s", key)
		}
		return d.String(), nil
	}
	return value, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := appconfig.Get()

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# Drawbridge Configuration

# Local asset server hosting the diagram editor
server:
  # Port to listen on (127.0.0.1 only)
  port: 1717
  # Directory holding the editor bundle (default: <config dir>/webapp)
  root_dir: ""
  # Start the editor in dark mode
  dark: false

# Markdown vault the diagrams live in
vault:
  # Vault root, relative to the working directory
  root: .

# Diagram files
diagrams:
  # Vault folder that receives new diagrams
  folder: drawio
  # Container for new diagrams: svg (.drawio.svg) or xml (.drawio)
  default_format: svg
  # Embed with ![](path) instead of ![[path]]
  use_markdown_links: false
  # Size suffix for wiki embeds, e.g. 400 or 400x300
  default_size: ""
  # Create the diagram file as soon as a session opens
  create_on_open: false

# Editing sessions
session:
  # How long to wait for the editor to answer an export request
  export_timeout: 5s
  # Inbound messages per second per session, and the allowed burst
  rate_limit: 50
  rate_burst: 20

# Report diagram files changed outside the editor
watch:
  enabled: true
  patterns:
    - "*.drawio.svg"
    - "*.drawio"
    - "*.drawid"

# Log file (see 'drawbridge logs')
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  # Rotate at this size and keep this many old files
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'drawbridge config set' to modify values", configFile)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created config file at %s\n", configFile)
	_, _ = fmt.Fprintln(out, "Edit this file to customize drawbridge's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	_, _ = fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	_, _ = fmt.Fprintln(out, "\nEnvironment variables: DRAWBRIDGE_* (e.g., DRAWBRIDGE_SERVER_PORT)")
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := findEditor()
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func findEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	for _, e := range []string{"vim", "nano", "vi"} {
		if _, err := execLookPath(e); err == nil {
			return e
		}
	}
	return ""
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	defaults := defaultValues()

	if len(args) == 0 {
		keys := make([]string, 0, len(defaults))
		for key := range defaults {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			viper.Set(key, defaults[key])
		}
		_, _ = fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		value, ok := defaults[key]
		if !ok {
			return unknownKey(key)
		}
		viper.Set(key, value)
		_, _ = fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
