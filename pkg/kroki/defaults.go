package kroki

import (
	"embed"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Placeholder is the source offered for a type without a bundled example.
const Placeholder = "// Enter your diagram source here"

//go:embed defaults/*.txt
var defaultsFS embed.FS

var (
	safeType     = regexp.MustCompile(`^[a-z0-9]+$`)
	defaultCache sync.Map // type -> string
)

// DefaultCode returns the bundled example source for diagramType, or
// Placeholder when the type is unknown or has no example.
func DefaultCode(diagramType string) string {
	key := canon(diagramType)
	if v, ok := defaultCache.Load(key); ok {
		return v.(string)
	}
	if !safeType.MatchString(key) || !slices.Contains(DiagramTypes, key) {
		return Placeholder
	}
	data, err := defaultsFS.ReadFile("defaults/" + key + ".txt")
	if err != nil {
		return Placeholder
	}
	code := strings.TrimSpace(string(data))
	defaultCache.Store(key, code)
	return code
}

// MissingDefaults lists diagram types that have no bundled example.
func MissingDefaults() []string {
	var missing []string
	for _, t := range DiagramTypes {
		if DefaultCode(t) == Placeholder {
			missing = append(missing, t)
		}
	}
	return missing
}
