package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver/internal/config"
	"github.com/aretw0/storyweaver/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "storyweaver",
	Short: "Storyweaver turns a short briefing into an illustrated story",
	Long: `Storyweaver guides you from a one-line briefing to an approved story,
renders one image per scene in the visual style you pick and exports the
result as a standalone HTML page.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with OPENAI_API_KEY and friends")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}

// loadConfig reads the configuration sources named by the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.Options{File: file, EnvFile: envFile})
	if err != nil {
		return cfg, err
	}

	overrides := map[string]any{}
	if cmd.Flags().Changed("log-file") {
		overrides["log_file"], _ = cmd.Flags().GetString("log-file")
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		overrides["log_level"] = "debug"
	}
	if err := cfg.Override(overrides); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// newLogger builds the logger for long running commands.
func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	jsonLogs, _ := cmd.Flags().GetBool("log-json")
	return logging.New(level, logging.Options{File: cfg.LogFile, JSON: jsonLogs})
}
