package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardSummary(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	sizes := []int64{10, 20, 30}
	var ids []string
	for i, size := range sizes {
		u, err := s.store.CreateUpload(ctx, "cust-1", "f.json", []byte(`[]`), size)
		require.NoError(t, err, i)
		ids = append(ids, u.ID)
	}
	_, err := s.store.CreateUpload(ctx, "cust-2", "f.json", []byte(`[]`), 1000)
	require.NoError(t, err)

	_, err = s.store.UpdateStatus(ctx, ids[0], models.StatusCompleted, 100)
	require.NoError(t, err)
	_, err = s.store.UpdateStatus(ctx, ids[1], models.StatusFailed, 0)
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/api/v1/dashboard/summary?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.DashboardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, models.DashboardSummary{
		TotalUploads:     3,
		PendingUploads:   1,
		CompletedUploads: 1,
		FailedUploads:    1,
		TotalFilesSize:   60,
		UploadsToday:     3,
	}, summary)
}

func TestDashboardSummary_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/dashboard/summary", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.store.ListErr = errors.New("connection reset")
	rec = s.do(http.MethodGet, "/api/v1/dashboard/summary?customer_id=cust-1", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardSummary_EmptyCustomer(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/v1/dashboard/summary?customer_id=nobody", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_uploads":0,"pending_uploads":0,"processing_uploads":0,"completed_uploads":0,"failed_uploads":0,"total_files_size":0,"uploads_today":0}`, rec.Body.String())
}
