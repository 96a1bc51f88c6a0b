package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
	"github.com/ravi-parthasarathy/umlflow/pkg/llm/providers"
	"github.com/ravi-parthasarathy/umlflow/pkg/nodes"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
)

// llmFlags are the provider selection flags shared by call and assist.
type llmFlags struct {
	provider  string
	model     string
	apiKey    string
	ollamaURL string
}

func (f *llmFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", llm.ProviderOllama, "LLM provider: "+strings.Join(llm.Providers, ", "))
	cmd.Flags().StringVar(&f.model, "model", "", `model name, or "provider:model" to pick both (default depends on provider)`)
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (default from the provider's environment variable)")
	cmd.Flags().StringVar(&f.ollamaURL, "ollama-url", "", "Ollama base URL (default $OLLAMA_BASE_URL or "+llm.DefaultOllamaBaseURL+")")
}

// selection returns the provider and model to use. A --model prefixed with
// a known provider overrides --provider; anything else, such as an Ollama
// "name:tag", is taken as a plain model name.
func (f *llmFlags) selection() (provider, model string) {
	if p, m, err := llm.ParseModelID(f.model); err == nil && slices.Contains(llm.Providers, p) {
		return p, m
	}
	return f.provider, f.model
}

func (f *llmFlags) inputs() nodes.Inputs {
	provider, model := f.selection()
	return nodes.Inputs{
		nodes.InProvider:      provider,
		nodes.InModel:         model,
		nodes.InAPIKey:        f.apiKey,
		nodes.InOllamaBaseURL: f.ollamaURL,
	}
}

// promptFlags are the prompt-building flags shared by prompt and assist.
type promptFlags struct {
	template    string
	description string
	positive    string
	negative    string
	preset      string
	diagramType string
	format      string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.template, "template", prompt.DefaultTemplate, "prompt template")
	cmd.Flags().StringVar(&f.description, "description", prompt.DefaultDescription, "what the diagram should show")
	cmd.Flags().StringVar(&f.positive, "positive", prompt.DefaultPositive, "positive instructions")
	cmd.Flags().StringVar(&f.negative, "negative", prompt.DefaultNegative, "negative instructions")
	cmd.Flags().StringVar(&f.preset, "preset", "", "prompt preset file name")
	cmd.Flags().StringVar(&f.diagramType, "type", prompt.DefaultDiagramType, "diagram type")
	cmd.Flags().StringVar(&f.format, "format", prompt.DefaultFormat, "output format")
}

// ─── prompt ───────────────────────────────────────────────────────────────────

func promptCmd() *cobra.Command {
	var (
		pf   promptFlags
		list bool
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Build an LLM prompt from a template or preset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := nodeEnv()
			if list {
				store := prompt.Builtin()
				if env.Prompts != nil {
					store = env.Prompts
				}
				for _, name := range store.List() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			out, err := runClass(cmd, env, nodes.ClassPromptEngine, nodes.Inputs{
				nodes.InTemplate:     pf.template,
				nodes.InDescription:  pf.description,
				nodes.InPositive:     pf.positive,
				nodes.InNegative:     pf.negative,
				nodes.InTemplateFile: pf.preset,
				nodes.InDiagramType:  pf.diagramType,
				nodes.InOutputFormat: pf.format,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "list available presets")
	return cmd
}

// ─── call ─────────────────────────────────────────────────────────────────────

func callCmd() *cobra.Command {
	var (
		lf       llmFlags
		negative string
	)

	cmd := &cobra.Command{
		Use:   "call [prompt]",
		Short: "Send a prompt to an LLM and print the reply",
		Long:  `Call sends the prompt (an argument, or stdin when omitted) to the selected provider.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			in := lf.inputs()
			in[nodes.InPrompt] = text
			in[nodes.InNegativeInput] = negative
			out, err := runClass(cmd, nodeEnv(), nodes.ClassCall, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out[nodes.OutText])
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&negative, "negative", "", "things the model should avoid")
	return cmd
}

// ─── assist ───────────────────────────────────────────────────────────────────

func assistCmd() *cobra.Command {
	var (
		lf       llmFlags
		pf       promptFlags
		render   bool
		krokiURL string
	)

	cmd := &cobra.Command{
		Use:   "assist",
		Short: "Draft diagram source with an LLM, optionally rendering it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := nodeEnv()
			in := lf.inputs()
			in[nodes.InTemplate] = pf.template
			in[nodes.InDescription] = pf.description
			in[nodes.InPositiveInstruction] = pf.positive
			in[nodes.InNegativeInstruction] = pf.negative
			in[nodes.InTemplateFile] = pf.preset
			in[nodes.InDiagramType] = pf.diagramType
			in[nodes.InOutputFormat] = pf.format
			out, err := runClass(cmd, env, nodes.ClassCodeGenerator, in)
			if err != nil {
				return err
			}
			if !render {
				fmt.Fprintln(cmd.OutOrStdout(), out[nodes.OutCodeInput])
				return nil
			}
			rendered, err := runClass(cmd, env, nodes.ClassDiagram, nodes.Inputs{
				nodes.InKrokiURL:     krokiBase(krokiURL),
				nodes.InDiagramType:  pf.diagramType,
				nodes.InCodeInput:    out[nodes.OutCodeInput],
				nodes.InOutputFormat: pf.format,
			})
			if err != nil {
				return err
			}
			delete(rendered, nodes.OutContentForViewer)
			return printJSON(cmd.OutOrStdout(), rendered)
		},
	}

	lf.register(cmd)
	pf.register(cmd)
	cmd.Flags().BoolVar(&render, "render", false, "render the drafted source and save it")
	cmd.Flags().StringVar(&krokiURL, "kroki-url", "", "Kroki server URL for --render")
	return cmd
}

// ─── models ───────────────────────────────────────────────────────────────────

func modelsCmd() *cobra.Command {
	var (
		baseURL  string
		provider string
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models installed on an Ollama server, or known to a provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var names []string
			if provider != "" && provider != llm.ProviderOllama {
				names = llm.Models(provider)
				if names == nil {
					return fmt.Errorf("unknown provider %q", provider)
				}
			} else {
				var err error
				names, err = providers.ListOllamaModels(cmd.Context(), nil, llm.ResolveOllamaBaseURL(baseURL))
				if err != nil {
					return err
				}
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Ollama base URL")
	cmd.Flags().StringVar(&provider, "provider", "", "list the catalogue of a hosted provider instead")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
