package api

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chat-upload-api/backend/internal/analyzer"
	"github.com/chat-upload-api/backend/internal/logging"
	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
	"github.com/chat-upload-api/backend/internal/processing"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/chat-upload-api/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testMaxFileSize = 1024

type testServer struct {
	e         *echo.Echo
	store     *testutil.MockStorage
	publisher *testutil.RecordingPublisher
	manager   *processing.Manager
}

type serverOption func(*Dependencies)

func withProcessor(p Processor) serverOption {
	return func(d *Dependencies) { d.Processor = p }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	logger := logging.Discard("api")
	s := &testServer{
		store:     testutil.NewMockStorage(),
		publisher: testutil.NewRecordingPublisher(),
	}
	parsers := parser.NewRegistry()
	s.manager = processing.NewManager(processing.Dependencies{
		Store:     s.store,
		Parsers:   parsers,
		Analyzers: analyzer.NewRegistry(analyzer.NewSampler(rand.NewPCG(1, 2))),
		Publisher: s.publisher,
		Logger:    logging.Discard("processing"),
	}, processing.Options{MaxConcurrentJobs: 2})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.manager.Shutdown(ctx)
	})

	deps := &Dependencies{
		Store: s.store,
		Gate: parser.NewGate(parser.Rules{
			MaxFileSize:  testMaxFileSize,
			AllowedTypes: []string{".json", ".csv"},
		}, parsers),
		Processor:     s.manager,
		Publisher:     s.publisher,
		WatchInterval: 10 * time.Millisecond,
		Version:       "test",
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(deps)
	}

	s.e = echo.New()
	s.e.HTTPErrorHandler = NewErrorHandler(logger, false)
	RegisterRoutes(s.e, NewHandlers(deps))
	return s
}

func (s *testServer) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, customer string, files ...testutil.FormFile) *httptest.ResponseRecorder {
	t.Helper()
	fields := map[string]string{}
	if customer != "" {
		fields["customer_id"] = customer
	}
	body, contentType := testutil.MultipartBody(t, fields, files...)
	return s.do(http.MethodPost, "/api/v1/uploads", body, contentType)
}

// uploadOne submits a single file and returns the created record.
func (s *testServer) uploadOne(t *testing.T, customer, filename, content string) *models.Upload {
	t.Helper()
	rec := s.upload(t, customer, testutil.FormFile{Filename: filename, Content: []byte(content)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Uploads, 1)
	return resp.Uploads[0]
}

func (s *testServer) waitStatus(t *testing.T, u *models.Upload, want models.UploadStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := s.store.GetUpload(context.Background(), u.ID, u.CustomerID)
		return err == nil && got.Status == want
	}, 5*time.Second, 5*time.Millisecond)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}

func apiPath(parts ...string) string {
	return "/api/v1/" + strings.Join(parts, "/")
}

var storageListAll = storage.ListOptions{Limit: 1000}
