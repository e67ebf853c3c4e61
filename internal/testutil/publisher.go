package testutil

import (
	"context"
	"sync"

	"github.com/chat-upload-api/backend/internal/events"
)

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error {
	return nil
}

// Types returns the event types published for uploadID, in order.
func (p *RecordingPublisher) Types(uploadID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var types []string
	for _, e := range p.events {
		if e.UploadID == uploadID {
			types = append(types, e.Type)
		}
	}
	return types
}
