// Package parser decodes uploaded chat exports. The same decoders back the
// submission gate and the background analyzers, so a file that passes the
// gate is guaranteed to decode again at processing time.
package parser

// Parser decodes the content of one file type.
type Parser interface {
	// Name returns the file type this parser handles, e.g. "json".
	Name() string
	// Parse decodes content into a Document.
	Parse(content []byte) (*Document, error)
}

// Document is the decoded form of an upload.
type Document struct {
	FileType string
	Size     int

	// JSON holds the decoded value for json documents: map[string]any or []any.
	JSON any

	// Header and Rows hold csv documents. Rows excludes the header line.
	Header []string
	Rows   [][]string
}
