package parser

import (
	"bytes"
	"encoding/csv"
)

// CSVParser decodes comma-separated chat exports with a header line.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Name() string {
	return "csv"
}

// Parse reads the whole file. Rows may have a different field count than the
// header and stray quotes inside unquoted fields are tolerated; blank lines
// are skipped.
func (p *CSVParser) Parse(content []byte) (*Document, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		FileType: p.Name(),
		Size:     len(content),
		Rows:     [][]string{},
	}
	if len(records) > 0 {
		doc.Header = records[0]
		doc.Rows = records[1:]
	}
	return doc, nil
}
