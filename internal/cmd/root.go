package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/drawbridge/internal/app"
	configcmd "github.com/Iron-Ham/drawbridge/internal/cmd/config"
	"github.com/Iron-Ham/drawbridge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "drawbridge",
	Short: "Edit diagrams embedded in a markdown vault",
	Long: `Drawbridge serves a local diagram editor and keeps the diagrams it
edits in sync with a markdown vault: new diagrams are created and embedded
on first save, saved diagrams are written in place, and diagrams closed
without any content are discarded along with their references.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/drawbridge/config.yaml)")
	rootCmd.PersistentFlags().String("vault", "", "vault root (overrides vault.root)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("vault.root", rootCmd.PersistentFlags().Lookup("vault"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DRAWBRIDGE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., DRAWBRIDGE_SERVER_PORT for server.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadApp validates the configuration and wires an App rooted at the
// current directory. The caller closes a.Logger.
func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	logger := app.CreateLogger(config.LogDir(), cfg)
	a, err := app.New(cfg, cwd, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return a, nil
}
