// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/budget-csv/internal/config"
	"fjacquet/budget-csv/internal/container"
	"fjacquet/budget-csv/internal/logging"

	"github.com/spf13/cobra"
)

// GlobalFlags holds the flags shared by every command.
type GlobalFlags struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Profile    string
}

var (
	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "budget-csv",
		Short: "Categorize credit card CSV exports into budget categories.",
		Long: `budget-csv categorizes the transactions of a credit card CSV export into
per-profile budget categories. Keyword rules are tried first; descriptions no
rule matches are sent to an AI model, and every answer is learned as a new rule.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			Shutdown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Flags are the values of the persistent flags.
	Flags = GlobalFlags{}

	cfg          *config.Config
	logger       logging.Logger = logging.NewNopLogger()
	appContainer *container.Container
)

func init() {
	Cmd.PersistentFlags().StringVar(&Flags.ConfigFile, "config", "", "Config file (default: ./config.yaml, ~/.budget-csv/config.yaml)")
	Cmd.PersistentFlags().StringVar(&Flags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	Cmd.PersistentFlags().StringVar(&Flags.LogFormat, "log-format", "", "Log format (text, json)")
	Cmd.PersistentFlags().StringVarP(&Flags.Profile, "profile", "p", "", "Profile to work on (default from profile.default)")
}

func setup(cmd *cobra.Command, args []string) error {
	config.LoadEnv()

	var err error
	if Flags.ConfigFile != "" {
		cfg, err = config.InitializeConfigFromFile(Flags.ConfigFile)
	} else {
		cfg, err = config.InitializeConfig()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	if Flags.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(Flags.LogLevel)
	}
	if Flags.LogFormat != "" {
		cfg.Log.Format = strings.ToLower(Flags.LogFormat)
	}
	logger = config.ConfigureLoggingFromConfig(cfg)
	logger.WithField("command", cmd.Name()).Debug("Configuration loaded")
	return nil
}

// Shutdown closes the container if one was built. It runs after every
// successful command; main calls it again for commands that failed.
func Shutdown() {
	if appContainer == nil {
		return
	}
	if err := appContainer.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close resources")
	}
	appContainer = nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

// GetLogger returns the command logger.
func GetLogger() logging.Logger {
	return logger
}

// GetContainer builds the application container on first use. It is
// closed when the command finishes.
func GetContainer(ctx context.Context) (*container.Container, error) {
	if appContainer != nil {
		return appContainer, nil
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c, err := container.NewContainerWithLogger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	appContainer = c
	return c, nil
}

// ProfileName returns the --profile flag or the configured default.
func ProfileName() string {
	if p := strings.TrimSpace(Flags.Profile); p != "" {
		return p
	}
	if cfg != nil {
		return cfg.Profile.Default
	}
	return "default"
}
