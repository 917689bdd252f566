//go:build !js && !wasm

// Command viewctl inspects view manifests and runs the view engine without a browser.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Its-donkey/storefront/internal/ui/views"
)

var (
	manifestPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "viewctl",
	Short:         "Inspect and exercise the storefront view engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "views", "", "view manifest YAML (defaults to the built-in manifest)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "minimum log level written to stderr")
	rootCmd.AddCommand(resolveCmd, viewsCmd, bootCmd, tokenCmd)
}

func loadViews() (*views.Config, error) {
	if manifestPath == "" {
		return views.Default(), nil
	}
	return views.Load(manifestPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "viewctl:", err)
		os.Exit(1)
	}
}
