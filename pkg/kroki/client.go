package kroki

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const defaultTimeout = 30 * time.Second

// Request describes one diagram to render.
type Request struct {
	DiagramType string
	Format      string
	Source      string
	// Options are passed to the diagram engine (for example a GraphViz
	// scale or a D2 theme). When set, the request is sent as JSON.
	Options map[string]any
}

// Client renders diagrams through a Kroki HTTP endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a Client for baseURL, or DefaultBaseURL when empty.
func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{}, Timeout: defaultTimeout}
}

func (c *Client) base() string {
	b := strings.TrimSpace(c.BaseURL)
	if b == "" {
		b = DefaultBaseURL
	}
	return strings.TrimRight(b, "/")
}

// Render posts req to Kroki and returns the rendered bytes. Plain source is
// sent as text/plain; requests with options are sent as a JSON body.
// Responses for the base64 format are decoded.
func (c *Client) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := Validate(req.DiagramType, req.Format); err != nil {
		return nil, err
	}
	dtype, format := canon(req.DiagramType), canon(req.Format)
	endpoint := fmt.Sprintf("%s/%s/%s", c.base(), dtype, format)

	var (
		body        io.Reader
		contentType string
	)
	if len(req.Options) > 0 {
		payload, err := json.Marshal(map[string]any{
			"diagram_source":  req.Source,
			"diagram_options": req.Options,
		})
		if err != nil {
			return nil, &Error{Message: "Kroki request failed", Cause: err}
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	} else {
		body, contentType = strings.NewReader(req.Source), "text/plain; charset=utf-8"
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &Error{Message: "Kroki request failed", Cause: err}
	}
	httpReq.Header.Set("Content-Type", contentType)

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	slog.Debug("kroki render", "url", endpoint, "bytes", len(req.Source), "options", len(req.Options))
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: "Kroki request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "Kroki read response failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp.StatusCode, data)
	}
	return decodeBase64Body(format, data), nil
}

// decodeBase64Body decodes a base64-format response. Bodies that do not
// decode are returned unchanged.
func decodeBase64Body(format string, data []byte) []byte {
	if format != "base64" || len(data) == 0 {
		return data
	}
	out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return data
	}
	return out
}

// ─── backend selection ───────────────────────────────────────────────────────

// Backend names accepted by Renderer.
const (
	BackendWeb   = "web"
	BackendLocal = "local"
)

// Renderer picks between local rendering and a Kroki Client.
type Renderer struct {
	Client *Client
	Local  LocalRenderer
}

// Render renders req with the given backend. The local backend falls back
// to the web client when no local renderer handles the request.
func (r *Renderer) Render(ctx context.Context, backend string, req Request) ([]byte, error) {
	if canon(backend) == BackendLocal {
		local := r.Local
		if local == nil {
			local = RenderLocal
		}
		if data, ok := local(ctx, req.DiagramType, req.Source, req.Format); ok {
			return data, nil
		}
		slog.Debug("local render unavailable, using web", "type", req.DiagramType, "format", req.Format)
	}
	c := r.Client
	if c == nil {
		c = NewClient("")
	}
	return c.Render(ctx, req)
}

// ParseOptions decodes a JSON object of diagram options. Empty input, or
// anything other than an object, yields nil.
func ParseOptions(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var opts map[string]any
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
