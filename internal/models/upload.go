package models

import (
	"strings"
	"time"
)

// UploadStatus is the lifecycle state of an upload.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s UploadStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no job will move the upload out of s.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Upload is the metadata record of one submitted chat export.
type Upload struct {
	ID                    string       `json:"id" msgpack:"id"`
	CustomerID            string       `json:"customer_id" msgpack:"customer_id"`
	Filename              string       `json:"filename" msgpack:"filename"`
	FileType              string       `json:"file_type" msgpack:"file_type"`
	FileSize              int64        `json:"file_size" msgpack:"file_size"`
	UploadTimestamp       time.Time    `json:"upload_timestamp" msgpack:"upload_timestamp"`
	Status                UploadStatus `json:"status" msgpack:"status"`
	Progress              int          `json:"progress" msgpack:"progress"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at" msgpack:"processing_started_at"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at" msgpack:"processing_completed_at"`
}

// Clone returns a deep copy so callers never share the stored record.
func (u *Upload) Clone() *Upload {
	if u == nil {
		return nil
	}
	cp := *u
	if u.ProcessingStartedAt != nil {
		t := *u.ProcessingStartedAt
		cp.ProcessingStartedAt = &t
	}
	if u.ProcessingCompletedAt != nil {
		t := *u.ProcessingCompletedAt
		cp.ProcessingCompletedAt = &t
	}
	return &cp
}

// FileTypeFromName returns the lower-cased text after the last dot.
// A name without a dot yields the whole name.
func FileTypeFromName(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return strings.ToLower(filename[i+1:])
	}
	return strings.ToLower(filename)
}
