// Package kroki talks to a Kroki diagram rendering service. It knows which
// diagram types and output formats Kroki accepts, renders diagram source
// over HTTP, builds shareable GET URLs, and can render some types locally.
package kroki

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultBaseURL is the public Kroki instance.
const DefaultBaseURL = "https://kroki.io"

// DiagramTypes lists the diagram types in widget order. A workflow's
// diagram-type widget stores an index into this slice.
var DiagramTypes = []string{
	"actdiag",
	"blockdiag",
	"bpmn",
	"bytefield",
	"c4plantuml",
	"d2",
	"dbml",
	"ditaa",
	"erd",
	"excalidraw",
	"graphviz",
	"mermaid",
	"nomnoml",
	"nwdiag",
	"packetdiag",
	"pikchr",
	"plantuml",
	"rackdiag",
	"seqdiag",
	"structurizr",
	"svgbob",
	"symbolator",
	"tikz",
	"umlet",
	"vega",
	"vegalite",
	"wavedrom",
	"wireviz",
}

// FormatOrder is the order of the output-format widget.
var FormatOrder = []string{"png", "svg", "jpeg", "pdf", "txt", "base64"}

var (
	blockFormats = []string{"png", "svg", "pdf"}
	svgOnly      = []string{"svg"}
	textFormats  = []string{"png", "svg", "pdf", "txt", "base64"}
)

// SupportedFormats maps each diagram type to the output formats Kroki can
// produce for it.
var SupportedFormats = map[string][]string{
	"actdiag":     blockFormats,
	"blockdiag":   blockFormats,
	"bpmn":        svgOnly,
	"bytefield":   svgOnly,
	"c4plantuml":  textFormats,
	"d2":          {"png", "svg"},
	"dbml":        svgOnly,
	"ditaa":       {"png", "svg"},
	"erd":         {"png", "svg", "jpeg", "pdf"},
	"excalidraw":  svgOnly,
	"graphviz":    {"png", "svg", "pdf", "jpeg"},
	"mermaid":     {"svg", "png", "base64"},
	"nomnoml":     svgOnly,
	"nwdiag":      blockFormats,
	"packetdiag":  blockFormats,
	"pikchr":      svgOnly,
	"plantuml":    textFormats,
	"rackdiag":    blockFormats,
	"seqdiag":     blockFormats,
	"structurizr": textFormats,
	"svgbob":      svgOnly,
	"symbolator":  svgOnly,
	"tikz":        {"png", "svg", "jpeg", "pdf"},
	"umlet":       {"png", "svg", "jpeg"},
	"vega":        blockFormats,
	"vegalite":    blockFormats,
	"wavedrom":    svgOnly,
	"wireviz":     {"png", "svg"},
}

// canon lowercases and trims a type or format name.
func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks that diagramType is known and supports format. Both are
// matched case-insensitively.
func Validate(diagramType, format string) error {
	t, f := canon(diagramType), canon(format)
	allowed, ok := SupportedFormats[t]
	if !ok {
		sorted := slices.Clone(DiagramTypes)
		sort.Strings(sorted)
		return &Error{Message: fmt.Sprintf("Unsupported diagram type: %s. Supported: %s", t, strings.Join(sorted, ", "))}
	}
	if !slices.Contains(allowed, f) {
		return &Error{Message: fmt.Sprintf("Format '%s' not supported for %s. Supported: %s", f, t, strings.Join(allowed, ", "))}
	}
	return nil
}

// TypeIndex returns the widget index of diagramType, or -1.
func TypeIndex(diagramType string) int {
	return slices.Index(DiagramTypes, canon(diagramType))
}

// Formats returns the formats supported by diagramType, or ["png"] for an
// unknown type.
func Formats(diagramType string) []string {
	if f, ok := SupportedFormats[canon(diagramType)]; ok {
		return f
	}
	return []string{"png"}
}

// FormatIndex returns the FormatOrder index of the first format supported
// by diagramType.
func FormatIndex(diagramType string) int {
	allowed := Formats(diagramType)
	for i, f := range FormatOrder {
		if slices.Contains(allowed, f) {
			return i
		}
	}
	return 0
}

// FormatWidgetIndex returns the FormatOrder index of format when
// diagramType supports it, else FormatIndex(diagramType).
func FormatWidgetIndex(diagramType, format string) int {
	f := canon(format)
	if slices.Contains(Formats(diagramType), f) {
		if i := slices.Index(FormatOrder, f); i >= 0 {
			return i
		}
	}
	return FormatIndex(diagramType)
}
