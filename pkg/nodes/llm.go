package nodes

import (
	"context"
	"strings"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
	_ "github.com/ravi-parthasarathy/umlflow/pkg/llm/providers"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
)

// Class names of the LLM nodes.
const (
	ClassPromptEngine  = "LLMPromptEngine"
	ClassCall          = "LLMCall"
	ClassCodeGenerator = "UMLLLMCodeGenerator"
)

// LLM node input and output names.
const (
	InTemplate      = "template"
	InDescription   = "description"
	InPositive      = "positive"
	InNegative      = "negative"
	InTemplateFile  = "template_file"
	InPrompt        = "prompt"
	InNegativeInput = "negative_prompt"
	InAPIKey        = "api_key"
	InProvider      = "provider"
	InModel         = "model"
	InOllamaBaseURL = "ollama_base_url"

	// The code assistant keeps its older instruction input names.
	InPositiveInstruction = "positive_instruction"
	InNegativeInstruction = "negative_instruction"

	OutPrompt    = "prompt"
	OutPositive  = "positive"
	OutNegative  = "negative"
	OutText      = "text"
	OutCodeInput = "code_input"
)

func templateFileChoices(store *prompt.Store) []string {
	return append([]string{""}, store.List()...)
}

func providerParams() []Param {
	return []Param{
		{Name: InProvider, Default: llm.ProviderOllama, Choices: llm.Providers},
		{Name: InModel, Default: llm.DefaultModel(llm.ProviderOllama), Choices: llm.AllModels()},
		{Name: InAPIKey, Default: ""},
		{Name: InOllamaBaseURL, Default: ""},
	}
}

// ─── LLMPromptEngine ─────────────────────────────────────────────────────────

// PromptEngineClass builds prompt, positive and negative text from a
// template or a stored preset.
func PromptEngineClass(store *prompt.Store) Class {
	return Class{
		Name:        ClassPromptEngine,
		DisplayName: "LLM Prompt Engine",
		Params: []Param{
			{Name: InTemplate, Default: prompt.DefaultTemplate, Multiline: true},
			{Name: InDescription, Default: prompt.DefaultDescription},
			{Name: InPositive, Default: prompt.DefaultPositive, Multiline: true},
			{Name: InNegative, Default: prompt.DefaultNegative, Multiline: true},
			{Name: InTemplateFile, Default: "", Choices: templateFileChoices(store)},
			{Name: InDiagramType, Default: prompt.DefaultDiagramType, Choices: kroki.DiagramTypes},
			{Name: InOutputFormat, Default: prompt.DefaultFormat, Choices: kroki.FormatOrder},
		},
		ReturnNames: []string{OutPrompt, OutPositive, OutNegative},
		New:         func(env Env) Node { return &promptEngineNode{store: env.prompts()} },
	}
}

type promptEngineNode struct {
	store *prompt.Store
}

func (n *promptEngineNode) Run(_ context.Context, in Inputs) (Outputs, error) {
	res, err := prompt.Build(n.store, prompt.Input{
		Template:    in.Get(InTemplate, ""),
		Description: in.Get(InDescription, ""),
		Positive:    in.Get(InPositive, ""),
		Negative:    in.Get(InNegative, ""),
		Preset:      in.Get(InTemplateFile, ""),
		DiagramType: in.Get(InDiagramType, prompt.DefaultDiagramType),
		Format:      in.Get(InOutputFormat, prompt.DefaultFormat),
	})
	if err != nil {
		return nil, err
	}
	return Outputs{OutPrompt: res.Prompt, OutPositive: res.Positive, OutNegative: res.Negative}, nil
}

// ─── LLMCall ─────────────────────────────────────────────────────────────────

// CallClass sends a prompt and optional negative prompt to an LLM.
func CallClass() Class {
	return Class{
		Name:        ClassCall,
		DisplayName: "LLM Call",
		Params: append([]Param{
			{Name: InPrompt, Default: "", Multiline: true},
			{Name: InNegativeInput, Default: "", Multiline: true},
		}, providerParams()...),
		ReturnNames: []string{OutText},
		New:         func(Env) Node { return callNode{} },
	}
}

type callNode struct{}

func (callNode) Run(ctx context.Context, in Inputs) (Outputs, error) {
	text, err := llm.Generate(ctx, callFromInputs(in, in.Get(InPrompt, ""), in.Get(InNegativeInput, "")))
	if err != nil {
		return nil, err
	}
	return Outputs{OutText: text}, nil
}

func callFromInputs(in Inputs, promptText, negative string) llm.Call {
	return llm.Call{
		Provider:      strings.TrimSpace(in.Get(InProvider, llm.ProviderOllama)),
		Model:         strings.TrimSpace(in.Get(InModel, "")),
		Prompt:        promptText,
		Negative:      negative,
		APIKey:        in.Get(InAPIKey, ""),
		OllamaBaseURL: in.Get(InOllamaBaseURL, ""),
	}
}

// ─── UMLLLMCodeGenerator ─────────────────────────────────────────────────────

// CodeGeneratorClass builds a prompt and calls the LLM in one step. Its
// output feeds UMLDiagram's code_input.
func CodeGeneratorClass(store *prompt.Store) Class {
	params := []Param{
		{Name: InDescription, Default: prompt.DefaultDescription},
		{Name: InTemplate, Default: prompt.DefaultTemplate, Multiline: true},
		{Name: InPositiveInstruction, Default: prompt.DefaultPositive, Multiline: true},
		{Name: InNegativeInstruction, Default: prompt.DefaultNegative, Multiline: true},
		{Name: InTemplateFile, Default: "", Choices: templateFileChoices(store)},
		{Name: InDiagramType, Default: prompt.DefaultDiagramType},
		{Name: InOutputFormat, Default: prompt.DefaultFormat},
	}
	return Class{
		Name:        ClassCodeGenerator,
		DisplayName: "UML Code Assistant",
		Params:      append(params, providerParams()...),
		ReturnNames: []string{OutCodeInput},
		New:         func(env Env) Node { return &codeGeneratorNode{store: env.prompts()} },
	}
}

type codeGeneratorNode struct {
	store *prompt.Store
}

func (n *codeGeneratorNode) Run(ctx context.Context, in Inputs) (Outputs, error) {
	res, err := prompt.Build(n.store, prompt.Input{
		Template:         in.Get(InTemplate, ""),
		Description:      in.Get(InDescription, ""),
		Positive:         in.Get(InPositiveInstruction, ""),
		Negative:         in.Get(InNegativeInstruction, ""),
		Preset:           in.Get(InTemplateFile, ""),
		DiagramType:      in.Get(InDiagramType, prompt.DefaultDiagramType),
		Format:           in.Get(InOutputFormat, prompt.DefaultFormat),
		JoinInstructions: true,
	})
	if err != nil {
		return nil, err
	}
	text, err := llm.Generate(ctx, callFromInputs(in, res.Prompt, res.Negative))
	if err != nil {
		return nil, err
	}
	return Outputs{OutCodeInput: text}, nil
}
