// handlers_upload_test.go - Tests for upload handlers
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/chat-upload-api/backend/internal/events"
	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/processing"
	"github.com/chat-upload-api/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const chatJSON = `[{"sender":"alice","text":"hi"},{"sender":"bob","text":"hello"},{"sender":"alice","text":"bye"}]`

func resultByType(t *testing.T, resp models.ProcessingResultsResponse, resultType string) map[string]any {
	t.Helper()
	for _, r := range resp.Results {
		if r.ResultType == resultType {
			return r.Data
		}
	}
	t.Fatalf("no %s result in response", resultType)
	return nil
}

func TestCreateUploads_JSONEndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "cust-1", testutil.FormFile{Filename: "chat.json", Content: []byte(chatJSON)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Successfully uploaded 1 files", resp.Message)
	require.Len(t, resp.Uploads, 1)

	u := resp.Uploads[0]
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "cust-1", u.CustomerID)
	assert.Equal(t, "chat.json", u.Filename)
	assert.Equal(t, "json", u.FileType)
	assert.Equal(t, int64(len(chatJSON)), u.FileSize)

	s.waitStatus(t, u, models.StatusCompleted)

	rec = s.do(http.MethodGet, apiPath("uploads", u.ID, "status")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.UploadStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, u.ID, status.UploadID)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.NotNil(t, status.ProcessingStartedAt)
	assert.NotNil(t, status.ProcessingCompletedAt)

	rec = s.do(http.MethodGet, apiPath("uploads", u.ID, "results")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results models.ProcessingResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, u.ID, results.UploadID)
	require.Len(t, results.Results, 2)

	messages := resultByType(t, results, models.ResultMessageAnalysis)
	assert.EqualValues(t, 3, messages["total_messages"])
	assert.EqualValues(t, 2, messages["unique_participants"])
	resultByType(t, results, models.ResultSentimentAnalysis)

	assert.Equal(t, []string{events.TypeCreated, events.TypeProcessing, events.TypeCompleted}, s.publisher.Types(u.ID))
}

func TestCreateUploads_CSVEndToEnd(t *testing.T) {
	s := newTestServer(t)
	csv := "sender,text\nalice,hi\nbob,hello\nalice,bye\n"
	u := s.uploadOne(t, "cust-1", "chat.CSV", csv)
	assert.Equal(t, "csv", u.FileType)

	s.waitStatus(t, u, models.StatusCompleted)

	rec := s.do(http.MethodGet, apiPath("uploads", u.ID, "results")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results models.ProcessingResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))

	data := resultByType(t, results, models.ResultCSVAnalysis)
	assert.EqualValues(t, 3, data["total_rows"])
	assert.Equal(t, []any{"sender", "text"}, data["columns"])
	resultByType(t, results, models.ResultConversationMetrics)
}

func TestCreateUploads_MultipleFiles(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "cust-1",
		testutil.FormFile{Filename: "a.json", Content: []byte(`{"messages":[]}`)},
		testutil.FormFile{Filename: "b.csv", Content: []byte("h1,h2\n")},
	)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Successfully uploaded 2 files", resp.Message)
	require.Len(t, resp.Uploads, 2)
	assert.Equal(t, "a.json", resp.Uploads[0].Filename)
	assert.Equal(t, "b.csv", resp.Uploads[1].Filename)
}

func TestCreateUploads_SingleFileField(t *testing.T) {
	s := newTestServer(t)
	rec := s.upload(t, "cust-1", testutil.FormFile{Field: "file", Filename: "chat.json", Content: []byte(`[]`)})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateUploads_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		customer string
		files    []testutil.FormFile
		wantCode string
		wantMsg  string
	}{
		{
			name:     "missing customer",
			files:    []testutil.FormFile{{Filename: "chat.json", Content: []byte(`[]`)}},
			wantCode: "VALIDATION_ERROR",
			wantMsg:  "customer_id",
		},
		{
			name:     "no files",
			customer: "cust-1",
			wantCode: "VALIDATION_ERROR",
			wantMsg:  "files",
		},
		{
			name:     "unsupported extension",
			customer: "cust-1",
			files:    []testutil.FormFile{{Filename: "notes.txt", Content: []byte("hello")}},
			wantCode: "UNSUPPORTED_FILE_TYPE",
			wantMsg:  "Unsupported file type: notes.txt",
		},
		{
			name:     "no extension",
			customer: "cust-1",
			files:    []testutil.FormFile{{Filename: "README", Content: []byte("hello")}},
			wantCode: "UNSUPPORTED_FILE_TYPE",
			wantMsg:  "README",
		},
		{
			name:     "too large",
			customer: "cust-1",
			files:    []testutil.FormFile{{Filename: "big.json", Content: []byte(`"` + strings.Repeat("x", testMaxFileSize) + `"`)}},
			wantCode: "FILE_TOO_LARGE",
			wantMsg:  "File big.json exceeds maximum size limit",
		},
		{
			name:     "bare number json",
			customer: "cust-1",
			files:    []testutil.FormFile{{Filename: "n.json", Content: []byte("42")}},
			wantCode: "INVALID_FILE_FORMAT",
			wantMsg:  "Invalid file format in n.json",
		},
		{
			name:     "malformed json",
			customer: "cust-1",
			files:    []testutil.FormFile{{Filename: "bad.json", Content: []byte(`{"a":`)}},
			wantCode: "INVALID_FILE_FORMAT",
			wantMsg:  "bad.json",
		},
		{
			name:     "one bad file rejects the batch",
			customer: "cust-1",
			files: []testutil.FormFile{
				{Filename: "good.json", Content: []byte(`[]`)},
				{Filename: "bad.txt", Content: []byte("x")},
			},
			wantCode: "UNSUPPORTED_FILE_TYPE",
			wantMsg:  "bad.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.upload(t, tt.customer, tt.files...)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Contains(t, apiErr.Message+" "+apiErr.Details, tt.wantMsg)

			list, err := s.store.ListUploads(context.Background(), "cust-1", storageListAll)
			require.NoError(t, err)
			assert.Empty(t, list, "no upload may be created")
		})
	}
}

func TestCreateUploads_StoreFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.CreateErr = errors.New("disk on fire")

	rec := s.upload(t, "cust-1", testutil.FormFile{Filename: "chat.json", Content: []byte(`[]`)})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	apiErr := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", apiErr.Code)
	assert.Empty(t, apiErr.Details, "internal details are not exposed")
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestListUploads(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		_, err := s.store.CreateUpload(ctx, "cust-1", name, []byte(`[]`), 2)
		require.NoError(t, err)
	}
	other, err := s.store.CreateUpload(ctx, "cust-2", "x.json", []byte(`[]`), 2)
	require.NoError(t, err)
	_, err = s.store.UpdateStatus(ctx, other.ID, models.StatusFailed, 0)
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/api/v1/uploads?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.UploadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Uploads, 3)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 0, resp.Skip)
	assert.Equal(t, 100, resp.Limit)
	for _, u := range resp.Uploads {
		assert.Equal(t, "cust-1", u.CustomerID)
	}

	rec = s.do(http.MethodGet, "/api/v1/uploads?customer_id=cust-1&skip=1&limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Uploads, 1)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.Skip)
	assert.Equal(t, 1, resp.Limit)

	rec = s.do(http.MethodGet, "/api/v1/uploads?customer_id=cust-2&status=failed", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Uploads, 1)
	assert.Equal(t, other.ID, resp.Uploads[0].ID)

	rec = s.do(http.MethodGet, "/api/v1/uploads?customer_id=cust-2&status=pending", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Uploads)
}

func TestListUploads_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing customer", "", "customer_id"},
		{"negative skip", "customer_id=c&skip=-1", "skip"},
		{"non numeric skip", "customer_id=c&skip=abc", "skip"},
		{"zero limit", "customer_id=c&limit=0", "limit"},
		{"limit too large", "customer_id=c&limit=1001", "limit"},
		{"unknown status", "customer_id=c&status=done", "status"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/api/v1/uploads?"+tt.query, nil, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.field)
		})
	}
}

func TestGetStatus_NotOwned(t *testing.T) {
	s := newTestServer(t)
	u, err := s.store.CreateUpload(context.Background(), "cust-1", "a.json", []byte(`[]`), 2)
	require.NoError(t, err)

	for _, target := range []string{
		apiPath("uploads", u.ID, "status") + "?customer_id=cust-2",
		apiPath("uploads", "missing", "status") + "?customer_id=cust-1",
		apiPath("uploads", u.ID, "results") + "?customer_id=cust-2",
		apiPath("uploads", u.ID, "process") + "?customer_id=cust-2",
	} {
		method := http.MethodGet
		if strings.HasSuffix(strings.Split(target, "?")[0], "/process") {
			method = http.MethodPost
		}
		rec := s.do(method, target, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code, target)
	}
}

func TestGetResults_NoneYet(t *testing.T) {
	s := newTestServer(t)
	u, err := s.store.CreateUpload(context.Background(), "cust-1", "a.json", []byte(`[]`), 2)
	require.NoError(t, err)

	rec := s.do(http.MethodGet, apiPath("uploads", u.ID, "results")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "results not found")
}

func TestGetResultsMsgpack(t *testing.T) {
	s := newTestServer(t)
	u := s.uploadOne(t, "cust-1", "chat.json", chatJSON)
	s.waitStatus(t, u, models.StatusCompleted)

	rec := s.do(http.MethodGet, apiPath("uploads", u.ID, "results", "msgpack")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var resp models.ProcessingResultsResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, u.ID, resp.UploadID)
	assert.Len(t, resp.Results, 2)
}

func TestProcessUpload(t *testing.T) {
	s := newTestServer(t)
	u := s.uploadOne(t, "cust-1", "chat.json", chatJSON)
	s.waitStatus(t, u, models.StatusCompleted)

	rec := s.do(http.MethodPost, apiPath("uploads", u.ID, "process")+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp models.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Processing started", resp.Message)
	assert.Equal(t, u.ID, resp.UploadID)

	s.manager.Wait()
	s.waitStatus(t, u, models.StatusCompleted)
}

type stubProcessor struct {
	ok  bool
	err error
}

func (p stubProcessor) Trigger(context.Context, string, string) (bool, error) {
	return p.ok, p.err
}

func TestProcessUpload_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name       string
		processor  stubProcessor
		wantStatus int
		wantCode   string
	}{
		{"shut down", stubProcessor{err: processing.ErrClosed}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"store failure", stubProcessor{err: errors.New("boom")}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown upload", stubProcessor{}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, withProcessor(tt.processor))
			rec := s.do(http.MethodPost, apiPath("uploads", "some-id", "process")+"?customer_id=cust-1", nil, "")
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestDeleteUpload(t *testing.T) {
	s := newTestServer(t)
	u := s.uploadOne(t, "cust-1", "chat.json", chatJSON)
	s.waitStatus(t, u, models.StatusCompleted)

	rec := s.do(http.MethodDelete, apiPath("uploads", u.ID)+"?customer_id=cust-2", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, apiPath("uploads", u.ID)+"?customer_id=cust-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Upload deleted successfully"}`, rec.Body.String())

	rec = s.do(http.MethodGet, apiPath("uploads", u.ID, "status")+"?customer_id=cust-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, apiPath("uploads", u.ID, "results")+"?customer_id=cust-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodDelete, apiPath("uploads", u.ID)+"?customer_id=cust-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	types := s.publisher.Types(u.ID)
	require.NotEmpty(t, types)
	assert.Equal(t, events.TypeDeleted, types[len(types)-1])
}
