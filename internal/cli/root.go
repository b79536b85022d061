// Package cli implements the nbconvert command line.
package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "nbconvert",
	Short:         "Convert Jupyter notebooks to other formats",
	Long:          `Convert Jupyter notebooks to HTML, slides, LaTeX, PDF, Markdown, reStructuredText, scripts or canonical notebook JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
