// Package events publishes upload lifecycle transitions.
package events

import (
	"context"
	"time"
)

// Event types, also used as the last subject token.
const (
	TypeCreated    = "created"
	TypeProcessing = "processing"
	TypeCompleted  = "completed"
	TypeFailed     = "failed"
	TypeDeleted    = "deleted"
)

// Event describes one lifecycle transition of an upload.
type Event struct {
	Type       string    `json:"type"`
	UploadID   string    `json:"upload_id"`
	CustomerID string    `json:"customer_id"`
	FileType   string    `json:"file_type,omitempty"`
	Status     string    `json:"status,omitempty"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
