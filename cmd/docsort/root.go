package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sokoine/go-docsort/core/config"
)

var (
	cfgFile     string
	presetsFile string
	logLevel    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docsort",
	Short: "Template-driven PDF filing against spreadsheet records",
	Long: `docsort renames and files scanned PDFs using an output template
evaluated against the matching row of an Excel workbook, then points the
row's hyperlink at the filed document.

Templates interleave literal text with {field|operation} expressions:

  {processed_folder}/{filter1|str.upper}/{DATE FACTURE|date.year_month} - {filter2}.pdf`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"settings file (default: ~/.config/docsort/settings.json)")
	rootCmd.PersistentFlags().StringVar(&presetsFile, "presets", "",
		"presets file (default: alongside the settings file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("history", "",
		"history database (default: alongside the settings file)")

	viper.SetEnvPrefix("DOCSORT")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("history", rootCmd.PersistentFlags().Lookup("history"))
}

func initLogging(*cobra.Command, []string) error {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", viper.GetString("log_level"), err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("could not build logger: %w", err)
	}
	return nil
}

// configManager loads settings and presets on first use, so commands that
// never touch configuration do not create config directories.
func configManager() (*config.Manager, error) {
	path := viper.GetString("config")
	if path == "" {
		dir, err := defaultConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "settings.json")
	}
	presets := presetsFile
	if presets == "" {
		presets = filepath.Join(filepath.Dir(path), "presets.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create config directory: %w", err)
	}
	return config.NewManager(path, presets, logger)
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docsort"), nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
