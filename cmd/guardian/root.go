package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/internal/app"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "guardian",
		Short:         "Detect and mask PII in images",
		Long:          `guardian sends an image to the PII detection service, lists what was found and saves the masked copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $GUARDIAN_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewHealthCmd())
	rootCmd.AddCommand(NewEnqueueCmd())
	return rootCmd
}

func loadConfig() (*config.GuardianConfig, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.GetGuardianConfig()
}

// newApp loads the configuration and builds the application; the CLI stays
// quiet unless --verbose is set.
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.NewNop()
	if verbose {
		log, err = logger.NewLogger(
			logger.WithLevel("debug"),
			logger.WithEncoding("console"),
			logger.WithOutputPaths([]string{"stderr"}),
		)
		if err != nil {
			return nil, err
		}
	}
	return app.New(cmd.Context(), cfg, log)
}
