package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
)

// Canvas layout of generated workflows.
const (
	gridColumns   = 4
	gridOriginX   = 100
	gridOriginY   = 100
	gridCellW     = 420
	gridCellH     = 320
	diagramWidth  = 400
	diagramHeight = 300
)

// DefaultOllamaModel is used by LLMOllama when no model is given.
const DefaultOllamaModel = "llama3.2"

func num(i int) any { return intNumber(int64(i)) }

func nums(v ...int) []any {
	out := make([]any, len(v))
	for i, n := range v {
		out[i] = num(n)
	}
	return out
}

func port(name, typ string, slot int, links ...int) map[string]any {
	var l any
	if len(links) > 0 {
		l = nums(links...)
	}
	return map[string]any{
		"name":       name,
		"type":       typ,
		"links":      l,
		"slot_index": num(slot),
		"shape":      num(3),
	}
}

func input(name, typ string, link int) map[string]any {
	return map[string]any{"name": name, "type": typ, "link": num(link)}
}

// diagramOutputs returns the four outputs of a UMLDiagram node. krokiLinks
// are attached to the kroki_url output.
func diagramOutputs(viewer bool, krokiLinks ...int) []any {
	outs := []any{
		port("IMAGE", "IMAGE", 0),
		port("path", DefaultPortType, 1),
		port(OutputKrokiURL, DefaultPortType, 2, krokiLinks...),
	}
	if viewer {
		outs = append(outs, port(OutputContentForViewer, DefaultPortType, 3))
	}
	return outs
}

func newNode(id int, class string, x, y, w, h, order int) map[string]any {
	return map[string]any{
		"id":         num(id),
		"type":       class,
		"class_type": class,
		"pos":        nums(x, y),
		"size":       nums(w, h),
		"flags":      map[string]any{},
		"order":      num(order),
		"mode":       num(0),
		"properties": map[string]any{"Node name for S/R": class},
		"inputs":     []any{},
	}
}

// diagramNode builds a UMLDiagram node rendering diagramType in format.
func diagramNode(id int, diagramType, format string, x, y, order int, viewer bool, krokiLinks ...int) map[string]any {
	n := newNode(id, ClassDiagram, x, y, diagramWidth, diagramHeight, order)
	n["outputs"] = diagramOutputs(viewer, krokiLinks...)
	n["widgets_values"] = []any{
		num(0),
		kroki.DefaultBaseURL,
		num(kroki.TypeIndex(diagramType)),
		kroki.DefaultCode(diagramType),
		num(kroki.FormatWidgetIndex(diagramType, format)),
	}
	return n
}

// viewerNode builds a UMLViewerURL node fed by link.
func viewerNode(id, x, y, order, link int) map[string]any {
	n := newNode(id, ClassViewer, x, y, 280, 80, order)
	n["outputs"] = []any{port("viewer_url", DefaultPortType, 0)}
	n["widgets_values"] = []any{}
	n["inputs"] = []any{input(OutputKrokiURL, DefaultPortType, link)}
	return n
}

func link(id, origin, originSlot, target, targetSlot int) map[string]any {
	return map[string]any{
		"id":          num(id),
		"origin_id":   num(origin),
		"origin_slot": num(originSlot),
		"target_id":   num(target),
		"target_slot": num(targetSlot),
		"type":        DefaultPortType,
	}
}

func document(lastNode, lastLink int, nodes, links, groups []any) Document {
	return Document{
		"lastNodeId": num(lastNode),
		"lastLinkId": num(lastLink),
		"nodes":      nodes,
		"links":      links,
		"groups":     groups,
		"config":     map[string]any{},
		"extra":      map[string]any{},
		"version":    floatNumber(SchemaVersion),
	}
}

func mustNormalize(doc Document) Document {
	out, err := Normalize(doc)
	if err != nil {
		// Generated documents are always objects.
		panic(err)
	}
	return out
}

// SingleDiagram is a workflow with one UMLDiagram node rendering the
// bundled example for diagramType in its first supported format.
func SingleDiagram(diagramType string) Document {
	format := kroki.FormatOrder[kroki.FormatIndex(diagramType)]
	node := diagramNode(1, diagramType, format, 100, 100, 0, true)
	return mustNormalize(document(1, 0, []any{node}, []any{}, []any{}))
}

// SingleDiagramAPI is the prompt (API) form of SingleDiagram: nodes keyed
// by id with named inputs, as accepted by the host's queue endpoint.
func SingleDiagramAPI(diagramType string) map[string]any {
	format := kroki.FormatOrder[kroki.FormatIndex(diagramType)]
	return map[string]any{
		"1": map[string]any{
			"class_type": ClassDiagram,
			"inputs": map[string]any{
				"backend":       kroki.BackendWeb,
				"kroki_url":     kroki.DefaultBaseURL,
				"diagram_type":  diagramType,
				"code":          kroki.DefaultCode(diagramType),
				"output_format": format,
			},
		},
	}
}

// allDiagramsGroups clusters the 28 diagram nodes (ids are DiagramTypes
// index + 1) by family.
var allDiagramsGroups = []struct {
	title string
	nodes []int
}{
	{"UML (PlantUML, Mermaid, GraphViz, D2, ERD, Nomnoml, UMLet)", []int{17, 12, 11, 6, 9, 13, 24}},
	{"Block / Sequence diagrams", []int{1, 2, 19, 14, 15, 18}},
	{"Data (DBML, Vega, Vega-Lite, WaveDrom)", []int{7, 25, 26, 27}},
	{"Other (BPMN, Bytefield, C4, Ditaa, Excalidraw, Pikchr, Structurizr, Svgbob, Symbolator, TikZ, WireViz)", []int{3, 4, 5, 8, 10, 16, 20, 21, 22, 23, 28}},
}

// AllDiagrams lays out one UMLDiagram node per diagram type on a four
// column grid, grouped by diagram family.
func AllDiagrams() Document {
	nodes := make([]any, 0, len(kroki.DiagramTypes))
	for i, dt := range kroki.DiagramTypes {
		col, row := i%gridColumns, i/gridColumns
		format := kroki.FormatOrder[kroki.FormatIndex(dt)]
		nodes = append(nodes, diagramNode(i+1, dt, format,
			gridOriginX+col*gridCellW, gridOriginY+row*gridCellH, i, false))
	}
	groups := make([]any, 0, len(allDiagramsGroups))
	for _, g := range allDiagramsGroups {
		groups = append(groups, map[string]any{"title": g.title, "nodes": nums(g.nodes...)})
	}
	return mustNormalize(document(len(nodes), 0, nodes, []any{}, groups))
}

// SingleNodeMultiFormat places blockdiag (svg, png) and plantuml (txt)
// diagrams side by side, each feeding its own viewer.
func SingleNodeMultiFormat() Document {
	configs := []struct {
		dtype, format string
		x             int
	}{
		{"blockdiag", "svg", 100},
		{"blockdiag", "png", 540},
		{"plantuml", "txt", 980},
	}
	var nodes, links []any
	for i, c := range configs {
		id, viewer := i+1, i+4
		nodes = append(nodes,
			diagramNode(id, c.dtype, c.format, c.x, 100, i, true, id),
			viewerNode(viewer, c.x, 420, 3+i, id),
		)
		links = append(links, link(id, id, 2, viewer, 0))
	}
	return mustNormalize(document(6, 3, nodes, links, []any{}))
}

// ViewerFormatsTest exercises the viewer with every output kind: blockdiag
// as png, svg and pdf and plantuml as txt, stacked vertically.
func ViewerFormatsTest() Document {
	const rowHeight = 420
	configs := []struct{ dtype, format string }{
		{"blockdiag", "png"},
		{"blockdiag", "svg"},
		{"blockdiag", "pdf"},
		{"plantuml", "txt"},
	}
	var nodes, links []any
	for i, c := range configs {
		id, viewer := i+1, i+5
		y := 100 + i*rowHeight
		nodes = append(nodes,
			diagramNode(id, c.dtype, c.format, 100, y, i, true, id),
			viewerNode(viewer, 100, y+320, 3+i, id),
		)
		links = append(links, link(id, id, 2, viewer, 0))
	}
	groups := []any{map[string]any{
		"title": "Viewer formats test (URL, PNG, SVG, PDF, TXT)",
		"bound": nums(80, 80, 400, 1800),
		"nodes": nums(1, 2, 3, 4, 5, 6, 7, 8),
	}}
	return mustNormalize(document(8, 4, nodes, links, groups))
}

// LLMOllama chains prompt engine, LLM call (Ollama), diagram and viewer.
func LLMOllama(model string) Document {
	if model == "" {
		model = DefaultOllamaModel
	}

	engine := newNode(1, "LLMPromptEngine", 100, 100, 400, 320, 0)
	engine["outputs"] = []any{
		port("prompt", DefaultPortType, 0, 1),
		port("positive", DefaultPortType, 1),
		port("negative", DefaultPortType, 2, 2),
	}
	engine["widgets_values"] = []any{
		"Generate a Mermaid diagram that illustrates: {{description}}",
		"Kroki – Creates diagrams from textual descriptions!",
		"Output only valid Mermaid diagram code. No markdown fences (no ```). No explanation.",
		"Do not add any text outside the diagram syntax.",
		"kroki.txt",
		"mermaid",
		"svg",
	}

	call := newNode(2, "LLMCall", 560, 100, 320, 200, 1)
	call["inputs"] = []any{
		input("prompt", DefaultPortType, 1),
		input("negative_prompt", DefaultPortType, 2),
	}
	call["outputs"] = []any{port("text", DefaultPortType, 0, 3)}
	call["widgets_values"] = []any{"", "ollama", model, "", "", ""}

	diagram := newNode(3, ClassDiagram, 560, 360, diagramWidth, diagramHeight, 2)
	diagram["inputs"] = []any{input("code_input", "*", 3)}
	diagram["outputs"] = diagramOutputs(true, 4)
	diagram["widgets_values"] = []any{
		num(0), kroki.DefaultBaseURL, num(kroki.TypeIndex("mermaid")), "", num(kroki.FormatWidgetIndex("mermaid", "svg")),
	}

	viewer := viewerNode(4, 560, 700, 3, 4)

	links := []any{
		link(1, 1, 0, 2, 0),
		link(2, 1, 2, 2, 1),
		link(3, 2, 0, 3, 0),
		link(4, 3, 2, 4, 0),
	}
	groups := []any{map[string]any{
		"title": "LLM (Ollama) → Kroki",
		"bound": nums(80, 80, 900, 820),
		"nodes": nums(1, 2, 3, 4),
	}}
	return mustNormalize(document(4, 4, []any{engine, call, diagram, viewer}, links, groups))
}

// writeJSON writes v with two-space indentation and a trailing newline.
func writeJSON(path string, v any) error {
	data, err := EncodeBytes(v, 2)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Generate writes the bundled workflow set into dir and returns the paths
// written. It fails before writing anything when a diagram type has no
// bundled example source.
func Generate(dir string, ollamaModel string) ([]string, error) {
	if missing := kroki.MissingDefaults(); len(missing) > 0 {
		return nil, fmt.Errorf("no default source for diagram types %v", missing)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var written []string
	write := func(name string, doc any) error {
		path := filepath.Join(dir, name)
		if err := writeJSON(path, doc); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		slog.Info("wrote workflow", "path", path)
		written = append(written, path)
		return nil
	}

	for _, dt := range kroki.DiagramTypes {
		if err := write("uml_"+dt+".json", SingleDiagram(dt)); err != nil {
			return written, err
		}
	}
	steps := []struct {
		name string
		doc  func() Document
	}{
		{"uml_single_node.json", SingleNodeMultiFormat},
		{"uml_all_diagrams.json", AllDiagrams},
		{"uml_viewer_formats_test.json", ViewerFormatsTest},
		{"llm_ollama.json", func() Document { return LLMOllama(ollamaModel) }},
	}
	for _, s := range steps {
		if err := write(s.name, s.doc()); err != nil {
			return written, err
		}
	}
	return written, nil
}
