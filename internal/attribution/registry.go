// Package attribution resolves seller codes embedded in participant
// messages (QR deep links put them there) to seller display names.
package attribution

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// codePattern matches a seller code anywhere in a message, e.g.
// "Hola, quiero participar. Codigo V042".
var codePattern = regexp.MustCompile(`\bV\d{1,4}\b`)

// ParseCode returns the first seller code found in text, uppercased, or
// "" when the text carries none.
func ParseCode(text string) string {
	return codePattern.FindString(strings.ToUpper(text))
}

// Registry is static read-only reference data: seller code to display name.
type Registry struct {
	sellers map[string]string
}

func NewRegistry(sellers map[string]string) *Registry {
	if sellers == nil {
		sellers = map[string]string{}
	}
	return &Registry{sellers: sellers}
}

// LoadRegistry reads a {"V001": "Name", ...} JSON file. An empty path
// yields an empty registry: every code resolves as unknown.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sellers file: %w", err)
	}
	var sellers map[string]string
	if err := json.Unmarshal(data, &sellers); err != nil {
		return nil, fmt.Errorf("decoding sellers file %s: %w", path, err)
	}
	return NewRegistry(sellers), nil
}

// Lookup resolves a code to its seller's display name.
func (r *Registry) Lookup(code string) (string, bool) {
	name, ok := r.sellers[strings.ToUpper(code)]
	return name, ok
}

// Codes lists all registered codes, for the QR link surface.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.sellers))
	for code := range r.sellers {
		codes = append(codes, code)
	}
	return codes
}
