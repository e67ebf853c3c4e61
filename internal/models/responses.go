package models

import "time"

// UploadResponse is returned after a successful multipart submission.
type UploadResponse struct {
	Message string    `json:"message"`
	Uploads []*Upload `json:"uploads"`
}

// UploadListResponse is one page of a customer's uploads.
type UploadListResponse struct {
	Uploads []*Upload `json:"uploads"`
	Total   int       `json:"total"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
}

// UploadStatusResponse is the polling view of an upload.
type UploadStatusResponse struct {
	UploadID              string       `json:"upload_id"`
	Status                UploadStatus `json:"status"`
	Progress              int          `json:"progress"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at"`
}

// NewUploadStatusResponse builds the status view of u.
func NewUploadStatusResponse(u *Upload) UploadStatusResponse {
	return UploadStatusResponse{
		UploadID:              u.ID,
		Status:                u.Status,
		Progress:              u.Progress,
		ProcessingStartedAt:   u.ProcessingStartedAt,
		ProcessingCompletedAt: u.ProcessingCompletedAt,
	}
}

// ProcessingResultsResponse carries every result of one upload.
type ProcessingResultsResponse struct {
	UploadID string             `json:"upload_id" msgpack:"upload_id"`
	Results  []ProcessingResult `json:"results" msgpack:"results"`
}

// DashboardSummary aggregates a customer's uploads.
type DashboardSummary struct {
	TotalUploads      int   `json:"total_uploads"`
	PendingUploads    int   `json:"pending_uploads"`
	ProcessingUploads int   `json:"processing_uploads"`
	CompletedUploads  int   `json:"completed_uploads"`
	FailedUploads     int   `json:"failed_uploads"`
	TotalFilesSize    int64 `json:"total_files_size"`
	UploadsToday      int   `json:"uploads_today"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Storage   string    `json:"storage,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message  string `json:"message"`
	UploadID string `json:"upload_id,omitempty"`
}
