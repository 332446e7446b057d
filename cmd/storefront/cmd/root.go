// Package cmd provides the CLI commands for storefront.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	dumpMetrics bool
	traceOutput bool
	ephemeral   bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "storefront - shop from the terminal",
	Long: `storefront is a terminal client for the storefront shop backend.

It keeps you signed in across runs, refreshes expired access tokens
transparently, and mirrors your cart and wishlist locally.

Quick start:
  1. Point it at your backend: STOREFRONT_API_BASE_URL=https://shop.example.com/
  2. Run: storefront login
  3. Run: storefront cart add 42

Configuration:
  Config is loaded from storefront.yaml in the current directory,
  $HOME/.storefront/, or /etc/storefront/.

  Environment variables can override config values with the STOREFRONT_ prefix.
  Example: STOREFRONT_SESSION_BACKEND=sqlite`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./storefront.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print client metrics to stderr on exit")
	rootCmd.PersistentFlags().BoolVar(&traceOutput, "trace", false, "print request spans to stderr")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the session in memory only")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// newLogger builds the stderr logger. --verbose always forces debug.
func newLogger(level string) *slog.Logger {
	lvl := parseLogLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
