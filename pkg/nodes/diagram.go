package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
)

// UMLDiagram input and output names.
const (
	ClassDiagram = "UMLDiagram"

	InBackend        = "backend"
	InKrokiURL       = "kroki_url"
	InDiagramType    = "diagram_type"
	InCode           = "code"
	InCodeInput      = "code_input"
	InOutputFormat   = "output_format"
	InDiagramOptions = "diagram_options"

	OutPath             = "path"
	OutKrokiURL         = "kroki_url"
	OutContentForViewer = "content_for_viewer"
)

const maxTypeInName = 20

// DiagramClass renders diagram source through Kroki (or locally), saves
// the result and exposes a shareable URL.
func DiagramClass() Class {
	return Class{
		Name:        ClassDiagram,
		DisplayName: "UML Render",
		Params: []Param{
			{Name: InBackend, Default: kroki.BackendWeb, Choices: []string{kroki.BackendWeb, kroki.BackendLocal}},
			{Name: InKrokiURL, Default: kroki.DefaultBaseURL},
			{Name: InDiagramType, Default: "mermaid", Choices: kroki.DiagramTypes},
			{Name: InCode, Default: kroki.DefaultCode("mermaid"), Multiline: true},
			{Name: InCodeInput, Link: true},
			{Name: InOutputFormat, Default: "png", Choices: kroki.FormatOrder},
			{Name: InDiagramOptions, Default: ""},
		},
		ReturnNames: []string{OutPath, OutKrokiURL, OutContentForViewer},
		Output:      true,
		New:         func(env Env) Node { return &diagramNode{env: env} },
	}
}

type diagramNode struct {
	env Env
}

func (n *diagramNode) Run(ctx context.Context, in Inputs) (Outputs, error) {
	diagramType := strings.TrimSpace(in.Get(InDiagramType, "mermaid"))
	format := strings.ToLower(strings.TrimSpace(in.Get(InOutputFormat, "png")))

	code := in.Get(InCode, "")
	if v, ok := in[InCodeInput]; ok {
		code = prompt.NormalizeCode(v)
	}
	if strings.TrimSpace(code) == "" {
		code = kroki.DefaultCode(diagramType)
	}

	if err := kroki.Validate(diagramType, format); err != nil {
		return nil, err
	}
	options := kroki.ParseOptions(in.Get(InDiagramOptions, ""))

	base := strings.TrimSpace(in.Get(InKrokiURL, kroki.DefaultBaseURL))
	renderer := &kroki.Renderer{
		Client: &kroki.Client{BaseURL: base, HTTPClient: n.env.HTTPClient},
		Local:  n.env.Local,
	}
	req := kroki.Request{DiagramType: diagramType, Format: format, Source: code, Options: options}
	data, err := renderer.Render(ctx, in.Get(InBackend, kroki.BackendWeb), req)
	if err != nil {
		return nil, fmt.Errorf("kroki: %w", err)
	}

	shareURL, err := kroki.URL(base, diagramType, format, code, options)
	if err != nil {
		return nil, fmt.Errorf("kroki: %w", err)
	}

	path, err := n.save(diagramType, format, data)
	if err != nil {
		return nil, err
	}

	content := path
	if format == "svg" && kroki.IsSVG(data) {
		content = strings.ToValidUTF8(string(data), "�")
	}
	slog.Info("diagram rendered", "type", diagramType, "format", format, "path", path, "bytes", len(data))
	return Outputs{
		OutPath:             path,
		OutKrokiURL:         shareURL,
		OutContentForViewer: content,
	}, nil
}

// save writes data to <output>/uml/uml_<type>_<millis>.<ext>.
func (n *diagramNode) save(diagramType, format string, data []byte) (string, error) {
	dir := n.env.UMLDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output/uml directory: %w", err)
	}
	safeType := strings.ReplaceAll(diagramType, "/", "_")
	if r := []rune(safeType); len(r) > maxTypeInName {
		safeType = string(r[:maxTypeInName])
	}
	name := fmt.Sprintf("uml_%s_%d.%s", safeType, n.env.now().UnixMilli(), kroki.DetectExtension(format, data))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write diagram to output/uml: %w", err)
	}
	return path, nil
}
