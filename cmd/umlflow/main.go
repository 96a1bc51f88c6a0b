package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/umlflow/pkg/config"
	"github.com/ravi-parthasarathy/umlflow/pkg/nodes"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
	"github.com/ravi-parthasarathy/umlflow/pkg/workflow"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cfg is resolved once per invocation before any subcommand runs.
var cfg = config.Defaults()

func rootCmd() *cobra.Command {
	var (
		envFile   string
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "umlflow",
		Short: "Diagram workflow toolkit",
		Long: `umlflow renders diagrams through Kroki, drafts diagram source with LLMs
and keeps node-graph workflow files loadable.

Workflows are JSON documents of nodes, links and groups. normalize repairs
them; generate writes the bundled example set; serve exposes the routes the
diagram viewer calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			loaded, err := config.Load(files...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded.Merge(config.Config{LogLevel: logLevel, LogFormat: logFormat})
			return initLogger(cfg.LogLevel, cfg.LogFormat)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(normalizeCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(addViewerCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(urlCmd())
	root.AddCommand(promptCmd())
	root.AddCommand(callCmd())
	root.AddCommand(assistCmd())
	root.AddCommand(modelsCmd())
	root.AddCommand(nodesCmd())
	root.AddCommand(runCmd())
	root.AddCommand(serveCmd())
	return root
}

// ─── normalize ────────────────────────────────────────────────────────────────

func normalizeCmd() *cobra.Command {
	var (
		output string
		indent int
	)

	cmd := &cobra.Command{
		Use:   "normalize [workflow.json ...]",
		Short: "Repair workflow JSON so it loads and queues reliably",
		Long: `Normalize rebuilds corrupted links, repairs groups and counters, and
drops legacy keys. With no input, or "-", it reads stdin and writes stdout
(or -o). Files are rewritten in place unless -o names an output file or,
for several inputs, a directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := workflow.ExpandInputs(args)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				inputs = []string{workflow.Stdin}
			}
			if len(inputs) == 0 {
				return errors.New("no input files matched")
			}
			if len(inputs) == 1 && inputs[0] == workflow.Stdin {
				return normalizeStream(cmd.InOrStdin(), cmd.OutOrStdout(), output, indent)
			}
			for _, in := range inputs {
				if in == workflow.Stdin {
					return errors.New("stdin '-' not allowed with multiple inputs")
				}
			}

			failed := 0
			for _, res := range workflow.NormalizeFiles(inputs, output, indent) {
				if res.Err != nil {
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "normalized %s -> %s\n", res.Src, res.Dst)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or directory for several inputs")
	cmd.Flags().IntVar(&indent, "indent", 2, "JSON indent; 0 for compact")
	return cmd
}

func normalizeStream(r io.Reader, w io.Writer, output string, indent int) error {
	doc, err := workflow.Decode(r)
	if err != nil {
		return err
	}
	norm, err := workflow.Normalize(doc)
	if err != nil {
		return err
	}
	if output == "" {
		return workflow.Encode(w, norm, indent)
	}
	data, err := workflow.EncodeBytes(norm, indent)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	slog.Info("wrote workflow", "path", output)
	return nil
}

// ─── generate ─────────────────────────────────────────────────────────────────

func generateCmd() *cobra.Command {
	var (
		dir         string
		ollamaModel string
		withViewer  bool
		indent      int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the bundled example workflows and normalize them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := workflow.Generate(dir, ollamaModel)
			if err != nil {
				return err
			}
			failed := 0
			for _, res := range workflow.NormalizeFiles(written, "", indent) {
				if res.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d generated file(s) failed to normalize", failed, len(written))
			}
			if withViewer {
				if _, err := addViewerFiles(written); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d workflow(s) to %s\n", len(written), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "workflows", "directory to write workflows into")
	cmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "model for the Ollama example workflow")
	cmd.Flags().BoolVar(&withViewer, "with-viewer", false, "wire a viewer node into each diagram workflow")
	cmd.Flags().IntVar(&indent, "indent", 2, "JSON indent")
	return cmd
}

// ─── add-viewer ───────────────────────────────────────────────────────────────

func addViewerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-viewer <workflow.json ...>",
		Short: "Wire a diagram viewer node into workflows that lack one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := workflow.ExpandInputs(args)
			if err != nil {
				return err
			}
			changed, err := addViewerFiles(paths)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d of %d workflow(s)\n", changed, len(paths))
			return nil
		},
	}
}

// addViewerFiles rewrites each workflow that AddViewer changes and returns
// how many were rewritten.
func addViewerFiles(paths []string) (int, error) {
	changed := 0
	for _, p := range paths {
		doc, err := readWorkflow(p)
		if err != nil {
			return changed, err
		}
		if !workflow.AddViewer(doc) {
			continue
		}
		data, err := workflow.EncodeBytes(doc, 2)
		if err != nil {
			return changed, fmt.Errorf("%s: %w", p, err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return changed, fmt.Errorf("write %s: %w", p, err)
		}
		slog.Info("added viewer", "path", p)
		changed++
	}
	return changed, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func readWorkflow(path string) (workflow.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer func() { _ = f.Close() }()
	doc, err := workflow.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// readSource returns the contents of path, stdin for "-", or def when path
// is empty.
func readSource(stdin io.Reader, path, def string) (string, error) {
	switch path {
	case "":
		return def, nil
	case workflow.Stdin:
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// nodeEnv builds the node environment from the resolved config.
func nodeEnv() nodes.Env {
	env := nodes.Env{OutputDir: cfg.OutputDir}
	if cfg.PromptsDir != "" {
		env.Prompts = prompt.NewStore(cfg.PromptsDir)
	}
	return env
}

// initLogger installs the process-wide slog handler.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[umlflow] interrupted, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
