package analyzer

import (
	"fmt"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// CSVAnalyzer summarises tabular chat exports.
type CSVAnalyzer struct {
	sampler *Sampler
}

func NewCSVAnalyzer(sampler *Sampler) *CSVAnalyzer {
	return &CSVAnalyzer{sampler: sampler}
}

func (a *CSVAnalyzer) FileType() string {
	return "csv"
}

func (a *CSVAnalyzer) Analyze(doc *parser.Document) ([]models.ProcessingResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("empty csv document")
	}

	columns := doc.Header
	if columns == nil {
		columns = []string{}
	}

	csvAnalysis := map[string]any{
		"total_rows":   len(doc.Rows),
		"columns":      columns,
		"file_size_kb": float64(doc.Size) / 1024,
	}

	conversationMetrics := map[string]any{
		"peak_activity_hour":            a.sampler.IntRange(9, 17),
		"most_active_day":               a.sampler.Choice(weekdays),
		"conversation_threads":          a.sampler.IntRange(5, 20),
		"average_response_time_minutes": a.sampler.IntRange(2, 30),
		"simulated":                     true,
	}

	return []models.ProcessingResult{
		{ResultType: models.ResultCSVAnalysis, Data: csvAnalysis},
		{ResultType: models.ResultConversationMetrics, Data: conversationMetrics},
	}, nil
}
