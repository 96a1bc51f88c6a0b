package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
)

const renderAllWorkers = 4

// ─── render ───────────────────────────────────────────────────────────────────

func renderCmd() *cobra.Command {
	var (
		format   string
		input    string
		output   string
		krokiURL string
		backend  string
		options  string
		all      bool
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "render [diagram-type]",
		Short: "Render diagram source through Kroki",
		Long: `Render sends diagram source to Kroki (or renders it locally with the
local backend) and writes the result. Without --in the bundled example
source for the type is used. --all renders every type's example into --dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd.Context())
			renderer := &kroki.Renderer{Client: kroki.NewClient(krokiBase(krokiURL))}
			opts := kroki.ParseOptions(options)

			if all {
				return renderAll(ctx, renderer, backend, format, dir, opts)
			}
			if len(args) != 1 {
				return fmt.Errorf("render needs a diagram type (or --all)")
			}
			diagramType := args[0]
			if err := kroki.Validate(diagramType, format); err != nil {
				return err
			}
			source, err := readSource(cmd.InOrStdin(), input, kroki.DefaultCode(diagramType))
			if err != nil {
				return err
			}
			data, err := renderer.Render(ctx, backend, kroki.Request{
				DiagramType: diagramType,
				Format:      format,
				Source:      source,
				Options:     opts,
			})
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			slog.Info("rendered", "type", diagramType, "format", format, "path", output, "bytes", len(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "svg", "output format")
	cmd.Flags().StringVar(&input, "in", "", "diagram source file, or - for stdin")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&krokiURL, "kroki-url", "", "Kroki server URL (default $KROKI_URL or https://kroki.io)")
	cmd.Flags().StringVar(&backend, "backend", kroki.BackendWeb, "render backend: web or local")
	cmd.Flags().StringVar(&options, "options", "", "diagram options as a JSON object")
	cmd.Flags().BoolVar(&all, "all", false, "render the example source of every diagram type")
	cmd.Flags().StringVar(&dir, "dir", "rendered", "output directory for --all")
	return cmd
}

// renderAll renders each type's bundled example into dir, a few at a time.
// A type that does not support format falls back to its first format.
func renderAll(ctx context.Context, r *kroki.Renderer, backend, format, dir string, opts map[string]any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderAllWorkers)
	for _, dt := range kroki.DiagramTypes {
		f := format
		if formats := kroki.Formats(dt); !slices.Contains(formats, f) {
			f = formats[0]
		}
		g.Go(func() error {
			data, err := r.Render(gctx, backend, kroki.Request{
				DiagramType: dt,
				Format:      f,
				Source:      kroki.DefaultCode(dt),
				Options:     opts,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", dt, err)
			}
			path := filepath.Join(dir, dt+"."+kroki.DetectExtension(f, data))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			slog.Info("rendered", "type", dt, "format", f, "path", path)
			return nil
		})
	}
	return g.Wait()
}

// ─── url ──────────────────────────────────────────────────────────────────────

func urlCmd() *cobra.Command {
	var (
		format   string
		input    string
		krokiURL string
		options  string
	)

	cmd := &cobra.Command{
		Use:   "url <diagram-type>",
		Short: "Print the Kroki GET URL for diagram source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diagramType := args[0]
			if err := kroki.Validate(diagramType, format); err != nil {
				return err
			}
			source, err := readSource(cmd.InOrStdin(), input, kroki.DefaultCode(diagramType))
			if err != nil {
				return err
			}
			u, err := kroki.URL(krokiBase(krokiURL), diagramType, format, source, kroki.ParseOptions(options))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "svg", "output format")
	cmd.Flags().StringVar(&input, "in", "", "diagram source file, or - for stdin")
	cmd.Flags().StringVar(&krokiURL, "kroki-url", "", "Kroki server URL")
	cmd.Flags().StringVar(&options, "options", "", "diagram options as a JSON object")
	return cmd
}

func krokiBase(flag string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	return cfg.KrokiURL
}
