package kroki

import "bytes"

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8}
)

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool { return bytes.HasPrefix(data, pngMagic) }

// IsJPEG reports whether data starts with a JPEG SOI marker.
func IsJPEG(data []byte) bool { return bytes.HasPrefix(data, jpegMagic) }

// IsSVG reports whether data looks like an SVG or XML document.
func IsSVG(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<svg"))
}

var extensions = map[string]string{
	"png":    "png",
	"svg":    "svg",
	"jpeg":   "jpeg",
	"pdf":    "pdf",
	"txt":    "txt",
	"base64": "txt",
}

// DetectExtension picks a file extension for rendered data. A decoded
// base64 payload is sniffed so PNG and SVG images keep a useful extension.
func DetectExtension(format string, data []byte) string {
	f := canon(format)
	ext, ok := extensions[f]
	if !ok {
		ext = "png"
	}
	if f == "base64" && len(data) >= 8 {
		switch {
		case IsPNG(data):
			ext = "png"
		case IsSVG(data):
			ext = "svg"
		}
	}
	return ext
}
