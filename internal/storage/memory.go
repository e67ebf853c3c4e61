package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore implements Store with maps guarded by a single RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	uploads  map[string]*models.Upload
	contents map[string][]byte
	results  map[string][]models.ProcessingResult
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		uploads:  make(map[string]*models.Upload),
		contents: make(map[string][]byte),
		results:  make(map[string][]models.ProcessingResult),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Backend() string {
	return "memory"
}

func (s *MemoryStore) CreateUpload(_ context.Context, customerID, filename string, content []byte, size int64) (*models.Upload, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	upload := &models.Upload{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Filename:        filename,
		FileType:        models.FileTypeFromName(filename),
		FileSize:        size,
		UploadTimestamp: s.now(),
		Status:          models.StatusPending,
		Progress:        0,
	}

	data := make([]byte, len(content))
	copy(data, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[upload.ID] = upload
	s.contents[upload.ID] = data

	return upload.Clone(), nil
}

func (s *MemoryStore) GetUpload(_ context.Context, id, customerID string) (*models.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upload, ok := s.uploads[id]
	if !ok || upload.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return upload.Clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status models.UploadStatus, progress int) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[id]
	if !ok {
		return false, nil
	}

	now := s.now()
	upload.Status = status
	upload.Progress = normalizeProgress(status, progress)
	switch status {
	case models.StatusProcessing:
		if upload.ProcessingStartedAt == nil {
			upload.ProcessingStartedAt = &now
		}
	case models.StatusCompleted:
		upload.ProcessingCompletedAt = &now
	}
	return true, nil
}

func (s *MemoryStore) ListUploads(_ context.Context, customerID string, opts ListOptions) ([]*models.Upload, error) {
	s.mu.RLock()
	list := make([]*models.Upload, 0)
	for _, upload := range s.uploads {
		if upload.CustomerID != customerID {
			continue
		}
		if opts.Status != "" && upload.Status != opts.Status {
			continue
		}
		list = append(list, upload.Clone())
	}
	s.mu.RUnlock()

	sortUploads(list)
	return page(list, opts), nil
}

func (s *MemoryStore) DeleteUpload(_ context.Context, id, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[id]
	if !ok || upload.CustomerID != customerID {
		return false, nil
	}
	delete(s.uploads, id)
	delete(s.contents, id)
	delete(s.results, id)
	return true, nil
}

func (s *MemoryStore) GetContent(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.contents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *MemoryStore) SaveResults(_ context.Context, id string, results []models.ProcessingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[id]; !ok {
		return nil
	}
	saved := make([]models.ProcessingResult, len(results))
	copy(saved, results)
	s.results[id] = saved
	return nil
}

func (s *MemoryStore) GetResults(_ context.Context, id string) ([]models.ProcessingResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.results[id]
	out := make([]models.ProcessingResult, len(results))
	copy(out, results)
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
