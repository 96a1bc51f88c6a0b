// Package prompt builds LLM prompts for diagram generation from templates
// and stored presets, and cleans model output back into diagram source.
package prompt

import (
	"regexp"
	"strings"
)

// Defaults offered when no template is configured.
const (
	DefaultTemplate    = "Generate a Mermaid diagram that illustrates: {{description}}"
	DefaultDescription = "Kroki – Creates diagrams from textual descriptions!"
	DefaultPositive    = "Output only valid Mermaid diagram code. No markdown fences (no ```). No explanation."
	DefaultNegative    = "Do not add any text outside the diagram syntax."
	DefaultDiagramType = "mermaid"
	DefaultFormat      = "svg"
)

// InstructionsPrefix introduces positive instructions appended to a prompt.
const InstructionsPrefix = "\n\nInstructions: "

// Vars are the values substituted into templates.
type Vars struct {
	Description string
	DiagramType string
	Format      string
}

// Apply replaces {{description}}, {{diagram_type}} and {{format}} in text.
func Apply(text string, v Vars) string {
	return strings.NewReplacer(
		"{{description}}", v.Description,
		"{{diagram_type}}", v.DiagramType,
		"{{format}}", v.Format,
	).Replace(text)
}

// Input is what a caller supplies to Build. Preset names a file in Store;
// its non-empty blocks override Template, Positive and Negative.
type Input struct {
	Template    string
	Description string
	Positive    string
	Negative    string
	Preset      string
	DiagramType string
	Format      string

	// JoinInstructions appends Positive to the prompt text.
	JoinInstructions bool
}

// Result is a built prompt.
type Result struct {
	Prompt   string
	Positive string
	Negative string
}

// Build loads the preset if any, substitutes placeholders and assembles
// the prompt. A nil store skips preset loading.
func Build(store *Store, in Input) (Result, error) {
	template, positive, negative := in.Template, in.Positive, in.Negative
	if name := strings.TrimSpace(in.Preset); name != "" && store != nil {
		p, err := store.Load(name)
		if err != nil {
			return Result{}, err
		}
		if p.Template != "" {
			template = p.Template
		}
		if p.Positive != "" {
			positive = p.Positive
		}
		if p.Negative != "" {
			negative = p.Negative
		}
	}

	v := Vars{
		Description: strings.TrimSpace(in.Description),
		DiagramType: strings.TrimSpace(in.DiagramType),
		Format:      strings.TrimSpace(in.Format),
	}
	res := Result{
		Prompt:   Apply(strings.TrimSpace(template), v),
		Positive: Apply(strings.TrimSpace(positive), v),
		Negative: Apply(strings.TrimSpace(negative), v),
	}
	if in.JoinInstructions && res.Positive != "" {
		res.Prompt += InstructionsPrefix + res.Positive
	}
	return res, nil
}

var fence = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*[ \t]*\r?\n(.*?)```")

// NormalizeCode turns model output into diagram source: the text is
// trimmed and, if it holds a fenced code block, the first block's body is
// returned instead.
func NormalizeCode(text string) string {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
