// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperfinder CLI. It resolves
// free-text citation queries against bibliographic sources, writes BibTeX or
// CSL for the best candidates, and can serve the same pipeline over HTTP.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/paperfinder/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// logger is built in PersistentPreRunE from --verbose and --log-json.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "paperfinder",
	Short: "Resolve citation queries to verified bibliographic records",
	Long: `paperfinder turns a free-text reference (a title, a half-remembered
author and year, a DOI or arXiv URL) into ranked candidate papers drawn from
DBLP, Semantic Scholar, the ACL Anthology, arXiv, and Crossref, and writes
citation entries for them.

Queries are routed by research domain, records for the same work are merged
so the formally published version wins over its preprint, and candidates can
be refined from their PDF.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger()
		if err != nil {
			return err
		}
		logger = l

		dir := viper.GetString("secrets_dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", zap.String("dir", dir), zap.Strings("names", s.Names()))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperfinder.yaml or ~/.config/paperfinder/paperfinder.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output and error stacks")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON instead of console text")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of secret files")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
}

func initConfig() {
	// .env values become environment variables; explicit ones win.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperfinder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperfinder"))
		}
	}

	viper.SetEnvPrefix("PAPERFINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds a console logger at warn level, or debug with --verbose.
func newLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if viper.GetBool("log_json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level.SetLevel(zapcore.WarnLevel)
	if viper.GetBool("verbose") {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "building logger")
	}
	return l, nil
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
