package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nbconvert/internal/config"
	"nbconvert/internal/exporters"
	"nbconvert/internal/infra/chrome"
)

var convertCmd = &cobra.Command{
	Use:   "convert [notebook]",
	Short: "Convert a notebook file",
	Long: `Convert a notebook file to the format given with --to. The result is
written next to the notebook unless --output is set; extracted images are
written to a <name>_files directory beside it. Use --output - for stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var (
	convertTo        string
	convertOutput    string
	convertChromeBin string
)

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "html", "Output format")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file, - for stdout")
	convertCmd.Flags().StringVar(&convertChromeBin, "chrome", os.Getenv("CHROME_BIN"), "Chrome binary used for pdf")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]

	var renderer exporters.Renderer
	if convertTo == "pdf" {
		var cfg config.Config
		cfg.PDF.ChromePath = convertChromeBin
		config.ApplyDefaults(&cfg)
		r, err := chrome.NewRenderer(cfg)
		if err != nil {
			return fmt.Errorf("failed to start pdf renderer: %w", err)
		}
		defer r.Close()
		renderer = r
	}

	exp, err := registry(renderer).Get(convertTo)
	if err != nil {
		return fmt.Errorf("%w (see 'nbconvert formats')", err)
	}

	output, res, err := exporters.FromFile(context.Background(), exp, input)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", input, err)
	}

	if convertOutput == "-" {
		if res.HasFiles() {
			return errors.New("conversion produced resource files; write to a file instead of stdout")
		}
		_, err := cmd.OutOrStdout().Write(output)
		return err
	}

	target := convertOutput
	if target == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		target = base + "." + exp.FileExtension()
	}
	if err := os.WriteFile(target, output, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	dir := filepath.Dir(target)
	for rel, data := range res.Outputs {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if r, err := filepath.Rel(dir, p); err != nil || !filepath.IsLocal(r) {
			return fmt.Errorf("refusing to write resource %s outside %s", rel, dir)
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}

	cmd.Printf("Wrote %s", target)
	if n := len(res.Outputs); n > 0 {
		cmd.Printf(" and %d resource files", n)
	}
	cmd.Println()
	return nil
}
