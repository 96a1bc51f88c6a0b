package nodes

import (
	"fmt"
	"sort"
)

// Registry maps class names to Class definitions.
type Registry struct {
	classes map[string]Class
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]Class)}
}

// Register adds or replaces a class. Registration order is kept for
// listing.
func (r *Registry) Register(c Class) {
	if _, exists := r.classes[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.classes[c.Name] = c
}

// Get returns the class with the given name, or an error if not registered.
func (r *Registry) Get(name string) (Class, error) {
	c, ok := r.classes[name]
	if !ok {
		return Class{}, fmt.Errorf("no node class registered for %q", name)
	}
	return c, nil
}

// Classes returns every class in registration order.
func (r *Registry) Classes() []Class {
	out := make([]Class, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.classes[name])
	}
	return out
}

// DisplayNames maps class names to their menu titles.
func (r *Registry) DisplayNames() map[string]string {
	out := make(map[string]string, len(r.classes))
	for name, c := range r.classes {
		out[name] = c.DisplayName
	}
	return out
}

// Names returns the registered class names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry holding every built-in class. The prompt
// store is consulted for template_file choices.
func Default(env Env) *Registry {
	r := NewRegistry()
	r.Register(DiagramClass())
	r.Register(ViewerURLClass())
	r.Register(PromptEngineClass(env.prompts()))
	r.Register(CallClass())
	r.Register(CodeGeneratorClass(env.prompts()))
	return r
}
