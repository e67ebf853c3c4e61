// Package storage holds upload records, their raw content and their
// processing results.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/chat-upload-api/backend/internal/models"
)

// ErrNotFound is returned for unknown ids and for ids owned by another customer.
var ErrNotFound = errors.New("upload not found")

// DefaultListLimit is the page size used when none is given.
const DefaultListLimit = 100

// ListOptions filter and page a customer's uploads.
type ListOptions struct {
	Skip   int
	Limit  int
	Status models.UploadStatus // empty means any status
}

// Store is the record store contract shared by every backend.
type Store interface {
	// CreateUpload records a new pending upload and its content.
	CreateUpload(ctx context.Context, customerID, filename string, content []byte, size int64) (*models.Upload, error)
	// GetUpload returns the upload if it exists and belongs to customerID.
	GetUpload(ctx context.Context, id, customerID string) (*models.Upload, error)
	// UpdateStatus moves an upload to status. It reports false for unknown ids.
	UpdateStatus(ctx context.Context, id string, status models.UploadStatus, progress int) (bool, error)
	// ListUploads returns the customer's uploads, newest first.
	ListUploads(ctx context.Context, customerID string, opts ListOptions) ([]*models.Upload, error)
	// DeleteUpload removes the upload with its content and results.
	DeleteUpload(ctx context.Context, id, customerID string) (bool, error)
	// GetContent returns the raw bytes stored with an upload.
	GetContent(ctx context.Context, id string) ([]byte, error)
	// SaveResults replaces the results of an upload. Unknown ids are ignored.
	SaveResults(ctx context.Context, id string, results []models.ProcessingResult) error
	// GetResults returns the results of an upload, possibly empty.
	GetResults(ctx context.Context, id string) ([]models.ProcessingResult, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
	// Backend names the implementation, e.g. "memory".
	Backend() string
}

// normalizeProgress clamps progress into [0,100] and keeps 100 exclusive to
// the completed status.
func normalizeProgress(status models.UploadStatus, progress int) int {
	if status == models.StatusCompleted {
		return 100
	}
	if progress < 0 {
		return 0
	}
	if progress > 99 {
		return 99
	}
	return progress
}

// sortUploads orders newest first, ties broken by id.
func sortUploads(list []*models.Upload) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.UploadTimestamp.Equal(b.UploadTimestamp) {
			return a.UploadTimestamp.After(b.UploadTimestamp)
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}

// page applies skip and limit to an already filtered, sorted list.
func page(list []*models.Upload, opts ListOptions) []*models.Upload {
	skip, limit := normalizePage(opts)
	if skip >= len(list) {
		return []*models.Upload{}
	}
	end := len(list)
	if skip+limit < end {
		end = skip + limit
	}
	return list[skip:end]
}

func normalizePage(opts ListOptions) (skip, limit int) {
	skip = opts.Skip
	if skip < 0 {
		skip = 0
	}
	limit = opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return skip, limit
}
