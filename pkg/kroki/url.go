package kroki

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// Encode compresses source with zlib at maximum compression and encodes it
// as URL-safe base64, the form Kroki accepts in GET paths. Empty source
// encodes to "".
func Encode(source string) (string, error) {
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write([]byte(source)); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// optionsQuery renders diagram options as a query string, keys sorted.
// Boolean true and empty strings are flags and carry an empty value.
func optionsQuery(options map[string]any) string {
	if len(options) == 0 {
		return ""
	}
	q := url.Values{}
	for k, v := range options {
		switch t := v.(type) {
		case bool:
			if t {
				q.Set(k, "")
			} else {
				q.Set(k, "false")
			}
		case string:
			q.Set(k, t)
		case float64:
			q.Set(k, strconv.FormatFloat(t, 'f', -1, 64))
		default:
			q.Set(k, fmt.Sprint(t))
		}
	}
	return "?" + q.Encode()
}

// URL builds a shareable GET URL for a diagram. The encoding matches the
// pako-based JavaScript clients, so URLs are interchangeable.
func URL(baseURL, diagramType, format, source string, options map[string]any) (string, error) {
	if err := Validate(diagramType, format); err != nil {
		return "", err
	}
	encoded, err := Encode(source)
	if err != nil {
		return "", &Error{Message: "encode diagram source", Cause: err}
	}
	base := (&Client{BaseURL: baseURL}).base()
	return fmt.Sprintf("%s/%s/%s/%s%s", base, canon(diagramType), canon(format), encoded, optionsQuery(options)), nil
}
