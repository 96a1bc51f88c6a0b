package nodes

import (
	"context"
	"net/url"
	"strings"
)

// UMLViewerURL names.
const (
	ClassViewerURL = "UMLViewerURL"

	// ViewerPath is where the host serves the diagram viewer page.
	ViewerPath = "/extensions/ComfyUI-UML/viewer.html"

	OutViewerURL       = "viewer_url"
	OutViewerURLIframe = "viewer_url_iframe"
)

// ViewerURLClass turns a Kroki URL into links to the viewer page.
func ViewerURLClass() Class {
	return Class{
		Name:        ClassViewerURL,
		DisplayName: "Diagram Viewer URL",
		Params: []Param{
			{Name: InKrokiURL, Default: ""},
		},
		ReturnNames: []string{OutViewerURL, OutViewerURLIframe},
		New:         func(Env) Node { return viewerNode{} },
	}
}

type viewerNode struct{}

func (viewerNode) Run(_ context.Context, in Inputs) (Outputs, error) {
	page, iframe := ViewerURLs(in.Get(InKrokiURL, ""))
	return Outputs{OutViewerURL: page, OutViewerURLIframe: iframe}, nil
}

// ViewerURLs returns the viewer page URL and its embeddable variant for a
// Kroki URL. A blank URL opens an empty viewer.
func ViewerURLs(krokiURL string) (page, iframe string) {
	u := strings.TrimSpace(krokiURL)
	if u == "" {
		return ViewerPath, ViewerPath + "?embed=1"
	}
	q := "url=" + escapeAll(u) + "&format=" + FormatFromURL(u)
	return ViewerPath + "?" + q, ViewerPath + "?embed=1&" + q
}

// FormatFromURL infers the viewer format from a Kroki URL or data URI.
// Anything unrecognised is treated as svg.
func FormatFromURL(u string) string {
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, "image/svg+xml") || strings.Contains(lower, "/svg/"):
		return "svg"
	case strings.Contains(lower, "/png/") || strings.Contains(lower, "/jpeg/"):
		return "png"
	case strings.Contains(lower, "/txt/"):
		return "txt"
	default:
		return "svg"
	}
}

// escapeAll percent-encodes everything except unreserved characters, with
// spaces as %20.
func escapeAll(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
