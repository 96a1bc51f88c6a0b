package nodes_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
	"github.com/ravi-parthasarathy/umlflow/pkg/nodes"
	"github.com/ravi-parthasarathy/umlflow/pkg/prompt"
)

const svgBody = `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`

type krokiHit struct {
	path        string
	contentType string
	body        string
}

func fakeKroki(t *testing.T, reply []byte) (*httptest.Server, *[]krokiHit) {
	t.Helper()
	var hits []krokiHit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		hits = append(hits, krokiHit{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(b)})
		_, _ = w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func fixedNow() time.Time { return time.UnixMilli(1700000000123) }

func TestRegistry(t *testing.T) {
	r := nodes.Default(nodes.Env{})
	want := map[string]string{
		"LLMCall":             "LLM Call",
		"LLMPromptEngine":     "LLM Prompt Engine",
		"UMLLLMCodeGenerator": "UML Code Assistant",
		"UMLDiagram":          "UML Render",
		"UMLViewerURL":        "Diagram Viewer URL",
	}
	assert.Equal(t, want, r.DisplayNames())
	assert.Len(t, r.Classes(), 5)
	assert.Equal(t, "UMLDiagram", r.Classes()[0].Name)

	_, err := r.Get("Nope")
	assert.ErrorContains(t, err, `no node class registered for "Nope"`)

	c, err := r.Get(nodes.ClassDiagram)
	require.NoError(t, err)
	assert.Equal(t, []string{"path", "kroki_url", "content_for_viewer"}, c.ReturnNames)
	assert.True(t, c.Output)
	_, hasLink := c.Defaults()[nodes.InCodeInput]
	assert.False(t, hasLink, "link inputs have no default")
}

func TestRegistry_TemplateFileChoices(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("X"), 0o644))
	r := nodes.Default(nodes.Env{Prompts: prompt.NewStore(dir)})
	c, err := r.Get(nodes.ClassPromptEngine)
	require.NoError(t, err)
	for _, p := range c.Params {
		if p.Name == nodes.InTemplateFile {
			assert.Equal(t, []string{"", "x.txt"}, p.Choices)
			return
		}
	}
	t.Fatal("template_file param missing")
}

// ─── UMLDiagram ───────────────────────────────────────────────────────────────

func TestDiagram_SVG(t *testing.T) {
	srv, hits := fakeKroki(t, []byte(svgBody))
	out := t.TempDir()
	env := nodes.Env{OutputDir: out, Now: fixedNow}

	res, err := nodes.DiagramClass().Run(t.Context(), env, nodes.Inputs{
		nodes.InKrokiURL:     srv.URL + "/",
		nodes.InDiagramType:  "plantuml",
		nodes.InCode:         "@startuml\nA -> B\n@enduml",
		nodes.InOutputFormat: "SVG",
	})
	require.NoError(t, err)

	require.Len(t, *hits, 1)
	assert.Equal(t, "/plantuml/svg", (*hits)[0].path)
	assert.Equal(t, "@startuml\nA -> B\n@enduml", (*hits)[0].body)

	wantPath := filepath.Join(out, "uml", "uml_plantuml_1700000000123.svg")
	assert.Equal(t, wantPath, res[nodes.OutPath])
	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, svgBody, string(data))
	assert.Equal(t, svgBody, res[nodes.OutContentForViewer])

	wantURL, err := kroki.URL(srv.URL, "plantuml", "svg", "@startuml\nA -> B\n@enduml", nil)
	require.NoError(t, err)
	assert.Equal(t, wantURL, res[nodes.OutKrokiURL])
}

func TestDiagram_CodeInputWinsAndIsNormalized(t *testing.T) {
	srv, hits := fakeKroki(t, []byte("\x89PNG\r\n\x1a\nrest"))
	env := nodes.Env{OutputDir: t.TempDir(), Now: fixedNow}

	res, err := nodes.DiagramClass().Run(t.Context(), env, nodes.Inputs{
		nodes.InKrokiURL:       srv.URL,
		nodes.InCode:           "graph TD\n  ignored-->code",
		nodes.InCodeInput:      "Sure!\n```mermaid\ngraph LR\n  A-->B\n```",
		nodes.InDiagramOptions: `{"theme": "dark"}`,
	})
	require.NoError(t, err)
	require.Len(t, *hits, 1)
	hit := (*hits)[0]
	assert.Equal(t, "/mermaid/png", hit.path)
	assert.Equal(t, "application/json", hit.contentType)
	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(hit.body), &sent))
	assert.Equal(t, "graph LR\n  A-->B", sent["diagram_source"])
	assert.Equal(t, map[string]any{"theme": "dark"}, sent["diagram_options"])

	assert.True(t, strings.HasSuffix(res[nodes.OutPath], ".png"))
	assert.Equal(t, res[nodes.OutPath], res[nodes.OutContentForViewer], "non-svg output points the viewer at the file")
	assert.Contains(t, res[nodes.OutKrokiURL], "?theme=dark")
}

func TestDiagram_EmptyCodeUsesDefault(t *testing.T) {
	srv, hits := fakeKroki(t, []byte("txt"))
	env := nodes.Env{OutputDir: t.TempDir(), Now: fixedNow}

	_, err := nodes.DiagramClass().Run(t.Context(), env, nodes.Inputs{
		nodes.InKrokiURL:     srv.URL,
		nodes.InDiagramType:  "plantuml",
		nodes.InCode:         "  ",
		nodes.InCodeInput:    "",
		nodes.InOutputFormat: "txt",
	})
	require.NoError(t, err)
	require.Len(t, *hits, 1)
	assert.Equal(t, kroki.DefaultCode("plantuml"), (*hits)[0].body)
}

func TestDiagram_UnsupportedFormat(t *testing.T) {
	srv, hits := fakeKroki(t, []byte("x"))
	_, err := nodes.DiagramClass().Run(t.Context(), nodes.Env{OutputDir: t.TempDir()}, nodes.Inputs{
		nodes.InKrokiURL:     srv.URL,
		nodes.InDiagramType:  "mermaid",
		nodes.InOutputFormat: "pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Format 'pdf' not supported for mermaid")
	assert.Empty(t, *hits, "nothing is sent for an invalid format")
}

func TestDiagram_KrokiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Syntax error in graph", http.StatusBadRequest)
	}))
	defer srv.Close()
	out := t.TempDir()
	_, err := nodes.DiagramClass().Run(t.Context(), nodes.Env{OutputDir: out}, nodes.Inputs{nodes.InKrokiURL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kroki HTTP 400")
	entries, _ := os.ReadDir(filepath.Join(out, "uml"))
	assert.Empty(t, entries, "no file is written on failure")
}

func TestDiagram_LocalBackend(t *testing.T) {
	srv, hits := fakeKroki(t, []byte("web"))
	local := func(_ context.Context, diagramType, source, format string) ([]byte, bool) {
		return []byte(svgBody), diagramType == "graphviz"
	}
	env := nodes.Env{OutputDir: t.TempDir(), Local: local, Now: fixedNow}

	res, err := nodes.DiagramClass().Run(t.Context(), env, nodes.Inputs{
		nodes.InBackend:      "local",
		nodes.InKrokiURL:     srv.URL,
		nodes.InDiagramType:  "graphviz",
		nodes.InCode:         "digraph { a -> b }",
		nodes.InOutputFormat: "svg",
	})
	require.NoError(t, err)
	assert.Empty(t, *hits, "local render does not call Kroki")
	assert.Equal(t, svgBody, res[nodes.OutContentForViewer])
	assert.True(t, strings.HasPrefix(res[nodes.OutKrokiURL], srv.URL+"/graphviz/svg/"))
}

func TestDiagram_SVGFormatWithNonSVGBody(t *testing.T) {
	srv, _ := fakeKroki(t, []byte("x"))
	env := nodes.Env{OutputDir: t.TempDir(), Now: fixedNow}
	res, err := nodes.DiagramClass().Run(t.Context(), env, nodes.Inputs{
		nodes.InKrokiURL:     srv.URL,
		nodes.InDiagramType:  "excalidraw",
		nodes.InOutputFormat: "svg",
	})
	require.NoError(t, err)
	assert.Equal(t, "uml_excalidraw_1700000000123.svg", filepath.Base(res[nodes.OutPath]))
	assert.Equal(t, res[nodes.OutPath], res[nodes.OutContentForViewer], "non-svg body is not inlined")
}

// ─── UMLViewerURL ─────────────────────────────────────────────────────────────

func TestViewerURLs(t *testing.T) {
	tests := []struct {
		in, format string
	}{
		{"https://kroki.io/mermaid/svg/eNpLyU", "svg"},
		{"https://kroki.io/plantuml/PNG/abc", "png"},
		{"https://kroki.io/ditaa/jpeg/abc", "png"},
		{"https://kroki.io/graphviz/txt/abc", "txt"},
		{"data:image/svg+xml;base64,PHN2Zz4=", "svg"},
		{"https://kroki.io/graphviz/pdf/abc", "svg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.format, nodes.FormatFromURL(tt.in), tt.in)
	}

	page, iframe := nodes.ViewerURLs("  https://kroki.io/mermaid/svg/a b+c~d  ")
	q := "url=https%3A%2F%2Fkroki.io%2Fmermaid%2Fsvg%2Fa%20b%2Bc~d&format=svg"
	assert.Equal(t, nodes.ViewerPath+"?"+q, page)
	assert.Equal(t, nodes.ViewerPath+"?embed=1&"+q, iframe)

	page, iframe = nodes.ViewerURLs("   ")
	assert.Equal(t, "/extensions/ComfyUI-UML/viewer.html", page)
	assert.Equal(t, "/extensions/ComfyUI-UML/viewer.html?embed=1", iframe)
}

func TestViewerNode(t *testing.T) {
	out, err := nodes.ViewerURLClass().Run(t.Context(), nodes.Env{}, nodes.Inputs{nodes.InKrokiURL: "https://kroki.io/d2/png/x"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out[nodes.OutViewerURL], "&format=png"))
	assert.Contains(t, out[nodes.OutViewerURLIframe], "?embed=1&url=")
}

// ─── LLM nodes ────────────────────────────────────────────────────────────────

func TestPromptEngine_Defaults(t *testing.T) {
	out, err := nodes.PromptEngineClass(prompt.Builtin()).Run(t.Context(), nodes.Env{}, nodes.Inputs{})
	require.NoError(t, err)
	assert.Equal(t, "Generate a Mermaid diagram that illustrates: Kroki – Creates diagrams from textual descriptions!", out[nodes.OutPrompt])
	assert.Equal(t, prompt.DefaultPositive, out[nodes.OutPositive])
	assert.Equal(t, prompt.DefaultNegative, out[nodes.OutNegative])
}

func TestPromptEngine_Preset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seq.txt"), []byte("A {{diagram_type}} of {{description}}\n---\nAs {{format}}"), 0o644))
	env := nodes.Env{Prompts: prompt.NewStore(dir)}

	out, err := nodes.PromptEngineClass(env.Prompts).Run(t.Context(), env, nodes.Inputs{
		nodes.InTemplateFile: "seq.txt",
		nodes.InDescription:  " checkout ",
		nodes.InDiagramType:  "plantuml",
		nodes.InOutputFormat: "png",
		nodes.InNegative:     "",
	})
	require.NoError(t, err)
	assert.Equal(t, "A plantuml of checkout", out[nodes.OutPrompt])
	assert.Equal(t, "As png", out[nodes.OutPositive])
	assert.Equal(t, "", out[nodes.OutNegative])
}

func TestCall_Mock(t *testing.T) {
	t.Setenv(llm.MockEnv, "1")
	out, err := nodes.CallClass().Run(t.Context(), nodes.Env{}, nodes.Inputs{nodes.InPrompt: "anything", nodes.InProvider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, llm.MockResponse, out[nodes.OutText])
}

func TestCall_MissingKey(t *testing.T) {
	t.Setenv(llm.MockEnv, "")
	t.Setenv("GEMINI_API_KEY", "")
	_, err := nodes.CallClass().Run(t.Context(), nodes.Env{}, nodes.Inputs{nodes.InProvider: "gemini", nodes.InModel: "gemini-2.0-flash"})
	require.ErrorIs(t, err, llm.ErrNoAPIKey)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestCodeGenerator_Ollama(t *testing.T) {
	t.Setenv(llm.MockEnv, "")
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"\n graph TD\n  A-->B \n"}}`)
	}))
	defer srv.Close()

	out, err := nodes.CodeGeneratorClass(prompt.Builtin()).Run(t.Context(), nodes.Env{}, nodes.Inputs{
		nodes.InDescription:   "a login",
		nodes.InModel:         "mistral",
		nodes.InOllamaBaseURL: srv.URL + "/",
	})
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  A-->B", out[nodes.OutCodeInput])

	assert.Equal(t, "mistral", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, llm.NegativePrefix+prompt.DefaultNegative, got.Messages[0].Content)
	assert.Equal(t, "Generate a Mermaid diagram that illustrates: a login\n\nInstructions: "+prompt.DefaultPositive, got.Messages[1].Content)
}

func TestCodeGeneratorFeedsDiagram(t *testing.T) {
	t.Setenv(llm.MockEnv, "1")
	srv, hits := fakeKroki(t, []byte(svgBody))
	env := nodes.Env{OutputDir: t.TempDir(), Now: fixedNow}
	r := nodes.Default(env)

	gen, err := r.Get(nodes.ClassCodeGenerator)
	require.NoError(t, err)
	code, err := gen.Run(t.Context(), env, nodes.Inputs{nodes.InDescription: "kroki"})
	require.NoError(t, err)

	diagram, err := r.Get(nodes.ClassDiagram)
	require.NoError(t, err)
	res, err := diagram.Run(t.Context(), env, nodes.Inputs{
		nodes.InKrokiURL:     srv.URL,
		nodes.InCodeInput:    code[nodes.OutCodeInput],
		nodes.InOutputFormat: "svg",
	})
	require.NoError(t, err)
	assert.Equal(t, llm.MockResponse, (*hits)[0].body)

	viewer, err := r.Get(nodes.ClassViewerURL)
	require.NoError(t, err)
	links, err := viewer.Run(t.Context(), env, nodes.Inputs{nodes.InKrokiURL: res[nodes.OutKrokiURL]})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(links[nodes.OutViewerURL], "&format=svg"))
}
