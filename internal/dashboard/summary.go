// Package dashboard computes per-customer upload summaries.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/storage"
)

// pageSize is how many uploads are read per store call.
const pageSize = 1000

// Lister is the store method the summary reads through.
type Lister interface {
	ListUploads(ctx context.Context, customerID string, opts storage.ListOptions) ([]*models.Upload, error)
}

// Summarize counts the customer's uploads by status, sums their sizes and
// counts those uploaded on now's UTC calendar day.
func Summarize(ctx context.Context, store Lister, customerID string, now time.Time) (models.DashboardSummary, error) {
	var summary models.DashboardSummary
	today := now.UTC().Format(time.DateOnly)

	for skip := 0; ; skip += pageSize {
		uploads, err := store.ListUploads(ctx, customerID, storage.ListOptions{Skip: skip, Limit: pageSize})
		if err != nil {
			return models.DashboardSummary{}, fmt.Errorf("listing uploads: %w", err)
		}

		for _, u := range uploads {
			summary.TotalUploads++
			summary.TotalFilesSize += u.FileSize
			switch u.Status {
			case models.StatusPending:
				summary.PendingUploads++
			case models.StatusProcessing:
				summary.ProcessingUploads++
			case models.StatusCompleted:
				summary.CompletedUploads++
			case models.StatusFailed:
				summary.FailedUploads++
			}
			if u.UploadTimestamp.UTC().Format(time.DateOnly) == today {
				summary.UploadsToday++
			}
		}

		if len(uploads) < pageSize {
			return summary, nil
		}
	}
}
