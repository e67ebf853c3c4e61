// handlers_upload.go - Upload submission and per-upload handlers
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/chat-upload-api/backend/internal/events"
	"github.com/chat-upload-api/backend/internal/metrics"
	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
	"github.com/chat-upload-api/backend/internal/processing"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/vmihailenco/msgpack/v5"
)

// maxListLimit caps the page size of the list endpoint.
const maxListLimit = 1000

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store     storage.Store
	gate      *parser.Gate
	processor Processor
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, gate *parser.Gate, processor Processor, publisher events.Publisher, m *metrics.Metrics, logger *log.Logger) UploadHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &UploadHandlerImpl{
		store:     store,
		gate:      gate,
		processor: processor,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

type acceptedFile struct {
	name    string
	content []byte
}

// HandleCreateUploads accepts multipart files for a customer. Every file is
// validated before any record is created, so one bad file rejects the batch.
func (h *UploadHandlerImpl) HandleCreateUploads(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	customerID := firstValue(form.Value["customer_id"])
	if customerID == "" {
		return NewValidationError("customer_id", "required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return NewValidationError("files", "at least one file is required")
	}

	accepted := make([]acceptedFile, 0, len(headers))
	for _, fh := range headers {
		content, err := h.readFile(fh)
		if err != nil {
			var verr *parser.ValidationError
			if errors.As(err, &verr) {
				h.metrics.UploadRejected(rejectReason(err))
				return NewFileRejectedError(err)
			}
			return NewBadRequestError(fmt.Sprintf("could not read %s", fh.Filename), err)
		}
		accepted = append(accepted, acceptedFile{name: fh.Filename, content: content})
	}

	ctx := c.Request().Context()
	uploads := make([]*models.Upload, 0, len(accepted))
	for _, f := range accepted {
		upload, err := h.store.CreateUpload(ctx, customerID, f.name, f.content, int64(len(f.content)))
		if err != nil {
			return NewInternalError(fmt.Sprintf("failed to store %s", f.name), err)
		}
		h.metrics.UploadAccepted(upload.FileType, upload.FileSize)
		h.publishUpload(c, events.TypeCreated, upload)
		uploads = append(uploads, upload)
	}

	for _, upload := range uploads {
		if _, err := h.processor.Trigger(ctx, upload.ID, customerID); err != nil {
			h.logger.Warnf("[Upload %s] processing not started: %v", upload.ID, err)
		}
	}

	return c.JSON(http.StatusCreated, models.UploadResponse{
		Message: fmt.Sprintf("Successfully uploaded %d files", len(uploads)),
		Uploads: uploads,
	})
}

// readFile runs the gate over one multipart file.
func (h *UploadHandlerImpl) readFile(fh *multipart.FileHeader) ([]byte, error) {
	if err := h.gate.CheckHeader(fh.Filename, fh.Size); err != nil {
		return nil, err
	}

	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, h.gate.MaxFileSize()+1))
	if err != nil {
		return nil, err
	}
	if _, err := h.gate.Validate(fh.Filename, content); err != nil {
		return nil, err
	}
	return content, nil
}

// HandleListUploads returns one page of the customer's uploads, newest first
func (h *UploadHandlerImpl) HandleListUploads(c echo.Context) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}

	skip, err := intQuery(c, "skip", 0)
	if err != nil || skip < 0 {
		return NewValidationError("skip", "must be a non-negative integer")
	}
	limit, err := intQuery(c, "limit", storage.DefaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		return NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit))
	}

	status := models.UploadStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return NewValidationError("status", "must be one of pending, processing, completed, failed")
	}

	uploads, err := h.store.ListUploads(c.Request().Context(), customerID, storage.ListOptions{
		Skip:   skip,
		Limit:  limit,
		Status: status,
	})
	if err != nil {
		return NewInternalError("failed to list uploads", err)
	}

	return c.JSON(http.StatusOK, models.UploadListResponse{
		Uploads: uploads,
		Total:   len(uploads),
		Skip:    skip,
		Limit:   limit,
	})
}

// HandleGetStatus returns the processing state of one upload
func (h *UploadHandlerImpl) HandleGetStatus(c echo.Context) error {
	upload, err := h.ownedUpload(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewUploadStatusResponse(upload))
}

// HandleGetResults returns the analysis results of one upload
func (h *UploadHandlerImpl) HandleGetResults(c echo.Context) error {
	resp, err := h.results(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetResultsMsgpack is HandleGetResults encoded as msgpack
func (h *UploadHandlerImpl) HandleGetResultsMsgpack(c echo.Context) error {
	resp, err := h.results(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *UploadHandlerImpl) results(c echo.Context) (*models.ProcessingResultsResponse, error) {
	upload, err := h.ownedUpload(c)
	if err != nil {
		return nil, err
	}
	results, err := h.store.GetResults(c.Request().Context(), upload.ID)
	if err != nil {
		return nil, NewInternalError("failed to read results", err)
	}
	if len(results) == 0 {
		return nil, NewNotFoundError("results", upload.ID)
	}
	return &models.ProcessingResultsResponse{UploadID: upload.ID, Results: results}, nil
}

// HandleProcessUpload re-triggers processing and returns without waiting
func (h *UploadHandlerImpl) HandleProcessUpload(c echo.Context) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	ok, err := h.processor.Trigger(c.Request().Context(), id, customerID)
	if errors.Is(err, processing.ErrClosed) {
		return NewServiceUnavailableError("server is shutting down")
	}
	if err != nil {
		return NewInternalError("failed to start processing", err)
	}
	if !ok {
		return NewNotFoundError("upload", id)
	}

	return c.JSON(http.StatusAccepted, models.MessageResponse{
		Message:  "Processing started",
		UploadID: id,
	})
}

// HandleDeleteUpload removes an upload with its content and results
func (h *UploadHandlerImpl) HandleDeleteUpload(c echo.Context) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	upload, err := h.store.GetUpload(c.Request().Context(), id, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("upload", id)
	}
	if err != nil {
		return NewInternalError("failed to read upload", err)
	}

	deleted, err := h.store.DeleteUpload(c.Request().Context(), id, customerID)
	if err != nil {
		return NewInternalError("failed to delete upload", err)
	}
	if !deleted {
		return NewNotFoundError("upload", id)
	}
	h.publishUpload(c, events.TypeDeleted, upload)

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Upload deleted successfully"})
}

func (h *UploadHandlerImpl) ownedUpload(c echo.Context) (*models.Upload, error) {
	customerID, err := requireCustomer(c)
	if err != nil {
		return nil, err
	}
	id := c.Param("id")

	upload, err := h.store.GetUpload(c.Request().Context(), id, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewNotFoundError("upload", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to read upload", err)
	}
	return upload, nil
}

func (h *UploadHandlerImpl) publishUpload(c echo.Context, eventType string, upload *models.Upload) {
	err := h.publisher.Publish(c.Request().Context(), events.Event{
		Type:       eventType,
		UploadID:   upload.ID,
		CustomerID: upload.CustomerID,
		FileType:   upload.FileType,
		Status:     string(upload.Status),
		Progress:   upload.Progress,
		At:         time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warnf("[Upload %s] event %s not published: %v", upload.ID, eventType, err)
	}
}

func requireCustomer(c echo.Context) (string, error) {
	customerID := c.QueryParam("customer_id")
	if customerID == "" {
		return "", NewValidationError("customer_id", "required")
	}
	return customerID, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, parser.ErrTooLarge):
		return "too_large"
	default:
		return "invalid_format"
	}
}
