package analyzer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
)

var sentiments = []string{"positive", "neutral", "negative"}

// JSONAnalyzer counts messages and participants in JSON chat exports.
type JSONAnalyzer struct {
	sampler *Sampler
}

func NewJSONAnalyzer(sampler *Sampler) *JSONAnalyzer {
	return &JSONAnalyzer{sampler: sampler}
}

func (a *JSONAnalyzer) FileType() string {
	return "json"
}

// Analyze treats an array as a list of messages and any other document as a
// single message from an unknown participant.
func (a *JSONAnalyzer) Analyze(doc *parser.Document) ([]models.ProcessingResult, error) {
	if doc == nil || doc.JSON == nil {
		return nil, fmt.Errorf("empty json document")
	}

	messageCount := 1
	participants := []any{"unknown"}
	if items, ok := doc.JSON.([]any); ok {
		messageCount = len(items)
		participants = distinctSenders(items)
	}

	messageAnalysis := map[string]any{
		"total_messages":         messageCount,
		"unique_participants":    len(participants),
		"participants":           participants,
		"average_message_length": a.sampler.IntRange(20, 100),
		"simulated_fields":       []string{"average_message_length"},
	}

	sentimentAnalysis := map[string]any{
		"overall_sentiment": a.sampler.Choice(sentiments),
		"sentiment_score":   math.Round(a.sampler.Uniform(-1, 1)*100) / 100,
		"positive_messages": a.sampler.IntRange(0, messageCount/2),
		"negative_messages": a.sampler.IntRange(0, messageCount/4),
		"neutral_messages":  a.sampler.IntRange(0, messageCount/2),
		"simulated":         true,
	}

	return []models.ProcessingResult{
		{ResultType: models.ResultMessageAnalysis, Data: messageAnalysis},
		{ResultType: models.ResultSentimentAnalysis, Data: sentimentAnalysis},
	}, nil
}

// distinctSenders collects the "sender" of every object element in first-seen
// order. Senders are compared by their JSON encoding so non-string ids work.
func distinctSenders(items []any) []any {
	seen := make(map[string]struct{})
	senders := make([]any, 0)
	for _, item := range items {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sender, ok := msg["sender"]
		if !ok {
			continue
		}
		key, err := json.Marshal(sender)
		if err != nil {
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		senders = append(senders, plainNumber(sender))
	}
	return senders
}

// plainNumber converts json.Number to int64 or float64 so results encode as
// numbers in every store backend.
func plainNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
