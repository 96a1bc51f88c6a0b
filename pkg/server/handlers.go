package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
	"github.com/ravi-parthasarathy/umlflow/pkg/llm/providers"
)

const (
	maxUploadBytes    = 32 << 20
	maxFilenameLen    = 200
	getModelsTimeout  = 10 * time.Second
	proxyTimeout      = 30 * time.Second
	maxProxyRedirects = 10

	// DefaultOllamaURL is queried when get_models is sent no url.
	DefaultOllamaURL = "http://127.0.0.1:11434"
)

var mimeExt = map[string]string{
	"image/png":     "png",
	"image/svg+xml": "svg",
	"image/jpeg":    "jpeg",
}

// SafeExt picks the saved-file extension from the upload's MIME type,
// falling back to the file name's extension and then to png. A .jpg name
// maps to png.
func SafeExt(mimeType, filename string) string {
	if ext, ok := mimeExt[mimeType]; ok {
		return ext
	}
	if filename != "" {
		switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext {
		case "jpg":
			return "png"
		case "png", "svg", "jpeg":
			return ext
		}
	}
	return "png"
}

// ─── POST /comfyui-uml/save ──────────────────────────────────────────────────

type saveResponse struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Relative string `json:"relative"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fh := formFile(r.MultipartForm, "file", "image")
	if fh == nil {
		writeError(w, http.StatusBadRequest, "No file in request (use field 'file' or 'image')")
		return
	}
	body, err := readPart(fh)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read file: %v", err))
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Empty file")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType != "" {
		base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if _, ok := mimeExt[base]; !ok {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Disallowed type: %s. Use image/png, image/svg+xml, or image/jpeg", contentType))
			return
		}
	}

	name := fmt.Sprintf("uml_saved_%d.%s", s.cfg.Now().UnixMilli(), SafeExt(contentType, fh.Filename))
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if err := os.MkdirAll(s.cfg.UMLDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	full := filepath.Join(s.cfg.UMLDir, name)
	if err := os.WriteFile(full, body, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{
		Path:     full,
		Filename: name,
		Relative: path.Join("uml", name),
	})
}

// formFile returns the first upload found under any of fields.
func formFile(form *multipart.Form, fields ...string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, f := range fields {
		if files := form.File[f]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// ─── POST /comfyui-uml/ollama/get_models ─────────────────────────────────────

type getModelsRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleGetModels(w http.ResponseWriter, r *http.Request) {
	var req getModelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	base := strings.TrimRight(strings.TrimSpace(req.URL), "/")
	if base == "" {
		base = DefaultOllamaURL
	}

	models, err := providers.ListOllamaModels(r.Context(), s.client(getModelsTimeout), base)
	if err != nil {
		if code, ok := llm.StatusCode(err); ok {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("Ollama returned %d", code))
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// ─── GET /comfyui-uml/proxy ──────────────────────────────────────────────────

var errHostNotAllowed = errors.New("only kroki URLs may be proxied")

func (s *Server) checkProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errHostNotAllowed
	}
	host := strings.ToLower(u.Host)
	if s.hosts[host] || strings.HasSuffix(u.Hostname(), ".kroki.io") {
		return u, nil
	}
	return nil, errHostNotAllowed
}

// proxyClient is the upstream client with every redirect hop held to the
// same host allowlist as the original URL.
func (s *Server) proxyClient() *http.Client {
	c := *s.client(proxyTimeout)
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxProxyRedirects {
			return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
		}
		_, err := s.checkProxyURL(req.URL.String())
		return err
	}
	return &c
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target, err := s.checkProxyURL(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.proxyClient().Do(req)
	if errors.Is(err, errHostNotAllowed) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Kroki returned %d", resp.StatusCode))
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}
