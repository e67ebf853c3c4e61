// mock_storage.go - Fault-injecting store for tests
package testutil

import (
	"context"
	"sync"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/storage"
)

// MockStorage wraps a real MemoryStore and lets tests force individual
// operations to fail.
type MockStorage struct {
	storage.Store

	mu             sync.Mutex
	CreateErr      error
	GetErr         error
	ListErr        error
	DeleteErr      error
	ContentErr     error
	SaveResultsErr error
	ResultsErr     error
	PingErr        error

	statusCalls []StatusCall
}

// StatusCall is one recorded UpdateStatus invocation.
type StatusCall struct {
	ID       string
	Status   models.UploadStatus
	Progress int
}

// NewMockStorage creates a mock over an empty in-memory store.
func NewMockStorage() *MockStorage {
	return &MockStorage{Store: storage.NewMemoryStore()}
}

func (m *MockStorage) fault(err *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *err
}

// SetContentErr swaps the content fault while jobs may be reading it.
func (m *MockStorage) SetContentErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContentErr = err
}

func (m *MockStorage) CreateUpload(ctx context.Context, customerID, filename string, content []byte, size int64) (*models.Upload, error) {
	if err := m.fault(&m.CreateErr); err != nil {
		return nil, err
	}
	return m.Store.CreateUpload(ctx, customerID, filename, content, size)
}

func (m *MockStorage) GetUpload(ctx context.Context, id, customerID string) (*models.Upload, error) {
	if err := m.fault(&m.GetErr); err != nil {
		return nil, err
	}
	return m.Store.GetUpload(ctx, id, customerID)
}

func (m *MockStorage) UpdateStatus(ctx context.Context, id string, status models.UploadStatus, progress int) (bool, error) {
	m.mu.Lock()
	m.statusCalls = append(m.statusCalls, StatusCall{ID: id, Status: status, Progress: progress})
	m.mu.Unlock()
	return m.Store.UpdateStatus(ctx, id, status, progress)
}

func (m *MockStorage) ListUploads(ctx context.Context, customerID string, opts storage.ListOptions) ([]*models.Upload, error) {
	if err := m.fault(&m.ListErr); err != nil {
		return nil, err
	}
	return m.Store.ListUploads(ctx, customerID, opts)
}

func (m *MockStorage) DeleteUpload(ctx context.Context, id, customerID string) (bool, error) {
	if err := m.fault(&m.DeleteErr); err != nil {
		return false, err
	}
	return m.Store.DeleteUpload(ctx, id, customerID)
}

func (m *MockStorage) GetContent(ctx context.Context, id string) ([]byte, error) {
	if err := m.fault(&m.ContentErr); err != nil {
		return nil, err
	}
	return m.Store.GetContent(ctx, id)
}

func (m *MockStorage) SaveResults(ctx context.Context, id string, results []models.ProcessingResult) error {
	if err := m.fault(&m.SaveResultsErr); err != nil {
		return err
	}
	return m.Store.SaveResults(ctx, id, results)
}

func (m *MockStorage) GetResults(ctx context.Context, id string) ([]models.ProcessingResult, error) {
	if err := m.fault(&m.ResultsErr); err != nil {
		return nil, err
	}
	return m.Store.GetResults(ctx, id)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	if err := m.fault(&m.PingErr); err != nil {
		return err
	}
	return m.Store.Ping(ctx)
}

// StatusCalls returns the UpdateStatus calls made for id, in order.
func (m *MockStorage) StatusCalls(id string) []StatusCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var calls []StatusCall
	for _, c := range m.statusCalls {
		if c.ID == id {
			calls = append(calls, c)
		}
	}
	return calls
}
