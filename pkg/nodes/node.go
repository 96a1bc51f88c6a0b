// Package nodes implements the diagram workflow node classes: rendering
// through Kroki, building viewer URLs, and producing diagram source with an
// LLM. Each class takes string inputs and returns named string outputs.
package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
)

// Category groups every class in the node menu.
const Category = "UML"

// Inputs are a node's widget and link values keyed by input name.
type Inputs map[string]string

// Get returns the value for key, or def when key is absent.
func (in Inputs) Get(key, def string) string {
	if v, ok := in[key]; ok {
		return v
	}
	return def
}

// Outputs are a node's results keyed by return name.
type Outputs map[string]string

// Node is one instance of a node class.
type Node interface {
	Run(ctx context.Context, in Inputs) (Outputs, error)
}

// Param describes one input of a class.
type Param struct {
	Name      string
	Default   string
	Choices   []string
	Multiline bool
	// Link marks an input fed by another node's output rather than a widget.
	// Link inputs have no default and are absent unless connected.
	Link bool
}

// Class is a registered node type.
type Class struct {
	Name        string
	DisplayName string
	Params      []Param
	ReturnNames []string
	// Output is set for classes that write results to disk.
	Output bool
	New    func(env Env) Node
}

// Defaults returns the default value of every widget input.
func (c Class) Defaults() Inputs {
	in := Inputs{}
	for _, p := range c.Params {
		if !p.Link {
			in[p.Name] = p.Default
		}
	}
	return in
}

// Run fills missing widget inputs with their defaults and runs a fresh
// node of this class.
func (c Class) Run(ctx context.Context, env Env, in Inputs) (Outputs, error) {
	merged := c.Defaults()
	for k, v := range in {
		merged[k] = v
	}
	slog.Debug("node run", "class", c.Name, "inputs", len(in))
	out, err := c.New(env).Run(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return out, nil
}

// Env carries what nodes need from their host.
type Env struct {
	// OutputDir is the host output directory; rendered diagrams go to its
	// uml subdirectory.
	OutputDir string
	// HTTPClient is used for Kroki requests. Nil means a default client.
	HTTPClient *http.Client
	// Local renders diagrams for the local backend. Nil means
	// kroki.RenderLocal.
	Local kroki.LocalRenderer
	// Prompts resolves template_file presets. Nil means the built-in store.
	Prompts *prompt.Store
	// Now stamps output file names. Nil means time.Now.
	Now func() time.Time
}

// DefaultOutputDir is used when Env.OutputDir is empty.
const DefaultOutputDir = "output"

// UMLDir returns the directory rendered and saved diagrams are written to.
func (e Env) UMLDir() string {
	dir := e.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	return filepath.Join(dir, "uml")
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) prompts() *prompt.Store {
	if e.Prompts != nil {
		return e.Prompts
	}
	return prompt.Builtin()
}
