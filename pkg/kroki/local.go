package kroki

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// LocalRenderer renders a diagram without Kroki. ok is false when the
// type/format pair cannot be handled locally.
type LocalRenderer func(ctx context.Context, diagramType, source, format string) (data []byte, ok bool)

const localTimeout = 60 * time.Second

// dotFormats are the graphviz output formats rendered with the dot binary.
var dotFormats = []string{"png", "svg", "pdf", "jpeg"}

// dotBinary is resolved on PATH; tests may point it elsewhere.
var dotBinary = "dot"

// RenderLocal renders graphviz diagrams with a local dot binary when one is
// installed. Every other type reports false so the caller can use Kroki.
func RenderLocal(ctx context.Context, diagramType, source, format string) ([]byte, bool) {
	t, f := canon(diagramType), canon(format)
	if t != "graphviz" || !slices.Contains(dotFormats, f) {
		return nil, false
	}
	bin, err := exec.LookPath(dotBinary)
	if err != nil {
		return nil, false
	}

	runCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, "-T"+f)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("dot failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, false
	}
	if stdout.Len() == 0 {
		return nil, false
	}
	return stdout.Bytes(), true
}
