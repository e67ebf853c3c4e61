package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrJSONShape is returned for JSON documents whose top level is a scalar.
var ErrJSONShape = errors.New("JSON must be an object or array")

// JSONParser decodes chat exports in JSON form.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Name() string {
	return "json"
}

// Parse decodes exactly one top-level object or array. Numbers are kept as
// json.Number so large ids survive untouched.
func (p *JSONParser) Parse(content []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
		}
		return nil, err
	}

	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, ErrJSONShape
	}

	return &Document{
		FileType: p.Name(),
		Size:     len(content),
		JSON:     v,
	}, nil
}
