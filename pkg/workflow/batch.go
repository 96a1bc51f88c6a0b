package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stdin is the argument that selects standard input.
const Stdin = "-"

// FileResult is the outcome of normalizing one file in a batch.
type FileResult struct {
	Src string
	Dst string
	Err error
}

// ExpandInputs expands glob patterns in the base name of each argument.
// Some shells pass patterns through unexpanded; this makes
// `normalize workflows/*.json` behave the same everywhere. Non-pattern
// arguments and "-" are returned unchanged. A pattern that matches
// nothing contributes no paths.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		if a == Stdin {
			out = append(out, a)
			continue
		}
		base := filepath.Base(a)
		if !strings.ContainsAny(base, "*?") {
			out = append(out, a)
			continue
		}
		matches, err := filepath.Glob(a)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", a, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// NormalizeFile reads the workflow at src, normalizes it and writes it to
// dst (which may equal src).
func NormalizeFile(src, dst string, indent int) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	doc, err := Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	norm, err := Normalize(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	data, err := EncodeBytes(norm, indent)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// NormalizeFiles normalizes each path in turn. With an empty out the files
// are rewritten in place. Otherwise out names a directory that receives
// files under their original base names, or, for a single input, the
// output file itself. A failing file is reported in its result and the
// batch continues with the next one.
func NormalizeFiles(paths []string, out string, indent int) []FileResult {
	toDir := false
	if out != "" {
		if st, err := os.Stat(out); err == nil && st.IsDir() {
			toDir = true
		} else if len(paths) > 1 {
			toDir = true
		}
		if toDir {
			if err := os.MkdirAll(out, 0o755); err != nil {
				results := make([]FileResult, len(paths))
				for i, p := range paths {
					results[i] = FileResult{Src: p, Err: fmt.Errorf("create %s: %w", out, err)}
				}
				return results
			}
		}
	}

	results := make([]FileResult, 0, len(paths))
	for _, p := range paths {
		dst := p
		switch {
		case toDir:
			dst = filepath.Join(out, filepath.Base(p))
		case out != "":
			dst = out
		}
		res := FileResult{Src: p, Dst: dst}
		if st, err := os.Stat(p); err != nil {
			res.Err = err
		} else if !st.Mode().IsRegular() {
			res.Err = fmt.Errorf("not a file: %s", p)
		} else {
			res.Err = NormalizeFile(p, dst, indent)
		}
		if res.Err != nil {
			slog.Warn("normalize failed", "file", p, "error", res.Err)
		} else {
			slog.Debug("normalized", "file", p, "dst", dst)
		}
		results = append(results, res)
	}
	return results
}
