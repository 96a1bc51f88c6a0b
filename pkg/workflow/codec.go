package workflow

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

// Decode reads one JSON document from r. Numbers are kept as json.Number so
// integer ids and counters are written back exactly as they were read.
func Decode(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return doc, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (Document, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes doc to w followed by a newline. indent is the number of
// spaces per level; 0 writes compact JSON. HTML characters are not escaped.
func Encode(w io.Writer, doc any, indent int) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(doc any, indent int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
