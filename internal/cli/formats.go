package cli

import (
	"github.com/spf13/cobra"

	"nbconvert/internal/exporters"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the available output formats",
	Args:  cobra.NoArgs,
	Run:   runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, _ []string) {
	reg := registry(nil)
	mimes := reg.Mimetypes()
	for _, name := range reg.Names() {
		mime := "-"
		if m := mimes[name]; m != nil {
			mime = *m
		}
		cmd.Printf("%-10s %s\n", name, mime)
	}
}

// registry returns the built-in exporters; pdf is included when r is set.
func registry(r exporters.Renderer) *exporters.Registry {
	return exporters.Default(exporters.Options{PDF: r})
}
