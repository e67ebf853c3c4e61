package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chat-upload-api/backend/internal/models"
)

// Gate rejection kinds, matched with errors.Is.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds maximum size limit")
	ErrInvalidFormat   = errors.New("invalid file format")
)

// ValidationError reports why a submitted file was rejected.
type ValidationError struct {
	Filename string
	Kind     error
	Cause    error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrUnsupportedType:
		return fmt.Sprintf("Unsupported file type: %s", e.Filename)
	case ErrTooLarge:
		return fmt.Sprintf("File %s exceeds maximum size limit", e.Filename)
	default:
		return fmt.Sprintf("Invalid file format in %s: %v", e.Filename, e.Cause)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Rules are the submission limits.
type Rules struct {
	MaxFileSize  int64
	AllowedTypes []string // extensions with the leading dot, e.g. ".json"
}

// Gate validates files before any upload record exists.
type Gate struct {
	rules    Rules
	allowed  map[string]struct{}
	registry *Registry
}

// NewGate builds a gate over the given registry.
func NewGate(rules Rules, registry *Registry) *Gate {
	allowed := make(map[string]struct{}, len(rules.AllowedTypes))
	for _, ext := range rules.AllowedTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Gate{rules: rules, allowed: allowed, registry: registry}
}

// MaxFileSize returns the configured byte limit.
func (g *Gate) MaxFileSize() int64 {
	return g.rules.MaxFileSize
}

// CheckHeader runs the checks that need only the name and declared size, so
// oversized files can be rejected before their bytes are read.
func (g *Gate) CheckHeader(filename string, size int64) error {
	if !g.extensionAllowed(filename) {
		return &ValidationError{Filename: filename, Kind: ErrUnsupportedType}
	}
	if size > g.rules.MaxFileSize {
		return &ValidationError{Filename: filename, Kind: ErrTooLarge}
	}
	return nil
}

// Validate checks extension, size and content, returning the decoded document.
func (g *Gate) Validate(filename string, content []byte) (*Document, error) {
	if err := g.CheckHeader(filename, int64(len(content))); err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, &ValidationError{Filename: filename, Kind: ErrInvalidFormat, Cause: errors.New("content is not valid UTF-8")}
	}

	doc, err := g.registry.Decode(models.FileTypeFromName(filename), content)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			return nil, &ValidationError{Filename: filename, Kind: ErrUnsupportedType}
		}
		return nil, &ValidationError{Filename: filename, Kind: ErrInvalidFormat, Cause: err}
	}
	return doc, nil
}

func (g *Gate) extensionAllowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := g.allowed[strings.ToLower(filename[i:])]
	return ok
}
