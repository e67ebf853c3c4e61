package models

import "time"

// Result types produced by the analyzers.
const (
	ResultMessageAnalysis     = "message_analysis"
	ResultSentimentAnalysis   = "sentiment_analysis"
	ResultCSVAnalysis         = "csv_analysis"
	ResultConversationMetrics = "conversation_metrics"
)

// ProcessingResult is one analysis output attached to an upload.
type ProcessingResult struct {
	ResultType string         `json:"result_type" msgpack:"result_type"`
	Data       map[string]any `json:"data" msgpack:"data"`
	CreatedAt  time.Time      `json:"created_at" msgpack:"created_at"`
}
