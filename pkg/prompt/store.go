package prompt

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed presets/*.txt
var builtin embed.FS

// presetSeparator splits a preset file into template, positive and
// negative blocks.
const presetSeparator = "\n---\n"

// Preset is a stored prompt: the template plus optional instructions.
type Preset struct {
	Template string
	Positive string
	Negative string
}

// IsZero reports whether the preset carries no text at all.
func (p Preset) IsZero() bool {
	return p.Template == "" && p.Positive == "" && p.Negative == ""
}

// ParsePreset splits raw preset text on separator lines and trims each
// block. Missing blocks are empty.
func ParsePreset(raw string) Preset {
	parts := strings.Split(raw, presetSeparator)
	var p Preset
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch i {
		case 0:
			p.Template = part
		case 1:
			p.Positive = part
		case 2:
			p.Negative = part
		}
	}
	return p
}

// Store reads presets from a file system, one *.txt file per preset.
type Store struct {
	fsys fs.FS
}

// NewStore returns a store over dir. An empty dir selects the presets
// built into the binary.
func NewStore(dir string) *Store {
	if dir == "" {
		return Builtin()
	}
	return &Store{fsys: os.DirFS(dir)}
}

// Builtin returns the store of presets compiled into the binary.
func Builtin() *Store {
	sub, err := fs.Sub(builtin, "presets")
	if err != nil {
		panic(err)
	}
	return &Store{fsys: sub}
}

// List returns the preset file names, sorted. A missing directory yields
// an empty list.
func (s *Store) List() []string {
	matches, err := fs.Glob(s.fsys, "*.txt")
	if err != nil {
		return nil
	}
	var names []string
	for _, m := range matches {
		if info, err := fs.Stat(s.fsys, m); err == nil && info.Mode().IsRegular() {
			names = append(names, m)
		}
	}
	sort.Strings(names)
	return names
}

// Load reads the named preset. A name that does not resolve to a regular
// file yields the zero preset; other read errors are returned.
func (s *Store) Load(name string) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" || !fs.ValidPath(name) || path.Base(name) != name {
		return Preset{}, nil
	}
	info, err := fs.Stat(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) || err == nil && !info.Mode().IsRegular() {
		return Preset{}, nil
	}
	if err != nil {
		return Preset{}, err
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return Preset{}, err
	}
	return ParsePreset(strings.ToValidUTF8(string(data), "�")), nil
}
