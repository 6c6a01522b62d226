package cli

import (
	"fmt"
	"os"

	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/logger"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFileFailure  = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "did",
	Short: "De-identification tool for text documents",
	Long: "did extracts PII entities from text, Markdown, TeX, and BibTeX documents\n" +
		"into a reviewable YAML configuration, and anonymizes documents by replacing\n" +
		"every entity variant with its stable placeholder id.",
	SilenceUsage: true,
}

// Persistent flags shared by all commands.
var (
	flagConfig   string
	flagLanguage string
)

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to tool configuration file")
	rootCmd.PersistentFlags().StringVarP(&flagLanguage, "language", "l", "", "detection language (en or da)")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(anonymizeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitCode == ExitSuccess {
			return ExitUsageError
		}
		return exitCode
	}

	return exitCode
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print did version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "did version %s\n", version)
	},
}

// setup loads the tool configuration (with the language flag applied) and
// builds the logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}

	if flagLanguage != "" {
		if flagLanguage != "en" && flagLanguage != "da" {
			return nil, nil, fmt.Errorf("invalid language: %s (must be en or da)", flagLanguage)
		}
		cfg.Language = flagLanguage
	}

	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		logCfg.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}
