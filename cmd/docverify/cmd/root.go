package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docverify/internal/config"
	"github.com/MeKo-Tech/docverify/internal/models"
)

var (
	// Global configuration, loaded before every command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Dotenv files loaded before the configuration.
	envFiles []string
	// logOutput receives the JSON log stream.
	logOutput io.Writer = os.Stderr
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docverify",
	Short: "Extract structured fields from identity document images",
	Long: `docverify reads NICOP cards, Pakistani passports and Saudi Iqama cards
and returns their printed fields as structured records.

Each image is preprocessed, read by several OCR passes whose detections are
merged and deduplicated, and handed to a document-specific extractor.

Examples:
  docverify extract --type nicop-front card.jpg
  docverify batch --type passport ./scans --output results.xlsx
  docverify serve --port 8080`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/docverify, /etc/docverify)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("models-dir", models.DefaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.PersistentFlags().String("backend", "onnx", "OCR backend (onnx, tesseract, vision)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	_ = viper.BindPFlag("engine.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// setup loads dotenv files and configuration, then installs the logger.
func setup(*cobra.Command, []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := config.NewLoader().LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg

	slog.SetDefault(slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel(cfg),
	})))
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}
