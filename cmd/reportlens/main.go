// Command reportlens serves question answering and KPI comparison over uploaded annual reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/config"
	logpkg "github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/version"
)

var envFlag string

var rootCmd = &cobra.Command{
	Use:           "reportlens",
	Short:         "RAG service for PDF annual reports",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "config environment (defaults to $ENV, then local)")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration for the selected environment and builds the logger.
func bootstrap() (string, config.Config, *zap.Logger, error) {
	env := envFlag
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return env, cfg, logger, nil
}
