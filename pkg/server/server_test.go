package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.UnixMilli(1700000000123) }

func newTestServer(t *testing.T, krokiURL string) (*Server, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uml")
	return New(Config{UMLDir: dir, KrokiURL: krokiURL, Now: fixedNow}), dir
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		mime, filename, want string
	}{
		{"image/png", "", "png"},
		{"image/svg+xml", "", "svg"},
		{"image/jpeg", "", "jpeg"},
		{"application/octet-stream", "diagram.png", "png"},
		{"application/octet-stream", "out.svg", "svg"},
		{"", "x.jpg", "png"},
		{"", "x.jpeg", "jpeg"},
		{"", "", "png"},
		{"", "x.PNG", "png"},
		{"", "x.SVG", "svg"},
		{"", "notes.txt", "png"},
	}
	for _, tt := range tests {
		if got := SafeExt(tt.mime, tt.filename); got != tt.want {
			t.Errorf("SafeExt(%q, %q) = %q, want %q", tt.mime, tt.filename, got, tt.want)
		}
	}
}

func TestSave(t *testing.T) {
	srv, dir := newTestServer(t, "")
	body, ct := multipartBody(t, "file", "diagram.svg", "image/svg+xml", []byte("<svg/>"))

	req := httptest.NewRequest(http.MethodPost, PathSave, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "uml_saved_1700000000123.svg", got.Filename)
	assert.Equal(t, "uml/uml_saved_1700000000123.svg", got.Relative)
	assert.Equal(t, filepath.Join(dir, got.Filename), got.Path)

	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestSave_ImageField(t *testing.T) {
	srv, _ := newTestServer(t, "")
	body, ct := multipartBody(t, "image", "shot.jpg", "", []byte{0xff, 0xd8, 0xff})

	req := httptest.NewRequest(http.MethodPost, PathSave, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "uml_saved_1700000000123.png")
}

func TestSave_Rejections(t *testing.T) {
	tests := []struct {
		name, field, contentType string
		data                     []byte
		wantErr                  string
	}{
		{"wrong field", "upload", "image/png", []byte("x"), "No file in request"},
		{"empty file", "file", "image/png", nil, "Empty file"},
		{"disallowed type", "file", "text/html", []byte("<b>"), "Disallowed type: text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, dir := newTestServer(t, "")
			body, ct := multipartBody(t, tt.field, "d.png", tt.contentType, tt.data)
			req := httptest.NewRequest(http.MethodPost, PathSave, body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
			_, err := os.Stat(dir)
			assert.True(t, os.IsNotExist(err), "nothing should be written")
		})
	}
}

func TestSave_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathSave, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func postJSON(srv http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestGetModels(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[{"model":"llama3.2:latest","name":"llama3.2"},{"name":"qwen2.5-coder:7b"},"mistral"]}`)
	}))
	defer ollama.Close()

	srv, _ := newTestServer(t, "")
	rec := postJSON(srv, PathGetModels, fmt.Sprintf(`{"url":%q}`, ollama.URL+"/"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var models []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Equal(t, []string{"llama3.2:latest", "qwen2.5-coder:7b", "mistral"}, models)
}

func TestGetModels_Errors(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ollama.Close()
	srv, _ := newTestServer(t, "")

	rec := postJSON(srv, PathGetModels, fmt.Sprintf(`{"url":%q}`, ollama.URL))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Ollama returned 404"}`, rec.Body.String())

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()
	rec = postJSON(srv, PathGetModels, fmt.Sprintf(`{"url":%q}`, downURL))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = postJSON(srv, PathGetModels, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxy_DisallowedHost(t *testing.T) {
	srv, _ := newTestServer(t, "")
	for _, target := range []string{"http://evil.com/diagram", "", "file:///etc/passwd", "https://kroki.io.evil.com/x"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathProxy+"?url="+target, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "kroki", target)
	}
}

func TestProxy_AllowedHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seqdiag/svg/abc", r.URL.Path)
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = io.WriteString(w, "<svg/>")
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathProxy+"?url="+upstream.URL+"/seqdiag/svg/abc", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<svg/>", rec.Body.String())
}

func TestProxy_Redirects(t *testing.T) {
	var otherHits atomic.Int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
		_, _ = io.WriteString(w, "secret")
	}))
	defer other.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/away":
			http.Redirect(w, r, other.URL+"/internal", http.StatusFound)
		case "/moved":
			http.Redirect(w, r, "/plantuml/svg/abc", http.StatusMovedPermanently)
		default:
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = io.WriteString(w, "<svg/>")
		}
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathProxy+"?url="+upstream.URL+"/moved", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<svg/>", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathProxy+"?url="+upstream.URL+"/away", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Zero(t, otherHits.Load(), "redirect to another host was followed")
}

func TestProxy_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "syntax error", http.StatusBadRequest)
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathProxy+"?url="+upstream.URL+"/x", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kroki returned 400")
}

func TestRequestIDPassthrough(t *testing.T) {
	srv, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
