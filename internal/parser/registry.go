package parser

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps file types to their parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the json and csv parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(NewJSONParser())
	r.Register(NewCSVParser())
	return r
}

// Register adds or replaces the parser for p.Name().
func (r *Registry) Register(p Parser) {
	r.parsers[strings.ToLower(p.Name())] = p
}

// Get returns the parser for a file type.
func (r *Registry) Get(fileType string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(fileType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	return p, nil
}

// Decode parses content with the parser registered for fileType.
func (r *Registry) Decode(fileType string, content []byte) (*Document, error) {
	p, err := r.Get(fileType)
	if err != nil {
		return nil, err
	}
	return p.Parse(content)
}

// Types lists the registered file types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
