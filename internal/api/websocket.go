package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// Server -> client message types of the watch stream
const (
	MsgTypeStatus  = "status"
	MsgTypeDeleted = "deleted"
	MsgTypeError   = "error"
)

const writeWait = 5 * time.Second

// WatchMessage is one frame of the watch stream
type WatchMessage struct {
	Type      string                       `json:"type"`
	UploadID  string                       `json:"upload_id"`
	Upload    *models.UploadStatusResponse `json:"upload,omitempty"`
	Message   string                       `json:"message,omitempty"`
	Timestamp int64                        `json:"timestamp"`
}

// WatchHandlerImpl pushes upload status changes to websocket clients
type WatchHandlerImpl struct {
	store    storage.Store
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewWatchHandler creates a watch handler polling the store every interval
func NewWatchHandler(store storage.Store, interval time.Duration, logger *log.Logger) WatchHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &WatchHandlerImpl{
		store:    store,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4 * 1024,
		},
		logger: logger,
	}
}

// HandleWatchUpload upgrades to a websocket and sends a status snapshot each
// time status or progress changes. The stream ends once the upload reaches a
// terminal status or disappears.
func (h *WatchHandlerImpl) HandleWatchUpload(c echo.Context) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	upload, err := h.store.GetUpload(ctx, id, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("upload", id)
	}
	if err != nil {
		return NewInternalError("failed to read upload", err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Warnf("[Watch %s] upgrade failed: %v", id, err)
		return nil
	}
	defer ws.Close()

	h.logger.Debugf("[Watch %s] client connected", id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debugf("[Watch %s] read error: %v", id, err)
				}
				return
			}
		}
	}()

	if err := h.sendStatus(ws, upload); err != nil {
		return nil
	}
	if upload.Status.Terminal() {
		h.closeStream(ws, "upload "+string(upload.Status))
		return nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	last := upload
	for {
		select {
		case <-closed:
			h.logger.Debugf("[Watch %s] client disconnected", id)
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		current, err := h.store.GetUpload(ctx, id, customerID)
		if errors.Is(err, storage.ErrNotFound) {
			h.send(ws, WatchMessage{Type: MsgTypeDeleted, UploadID: id, Message: "upload deleted"})
			h.closeStream(ws, "upload deleted")
			return nil
		}
		if err != nil {
			h.logger.Errorf("[Watch %s] store read failed: %v", id, err)
			h.send(ws, WatchMessage{Type: MsgTypeError, UploadID: id, Message: "failed to read upload"})
			h.closeStream(ws, "store error")
			return nil
		}

		if current.Status != last.Status || current.Progress != last.Progress {
			if err := h.sendStatus(ws, current); err != nil {
				return nil
			}
			last = current
		}
		if current.Status.Terminal() {
			h.closeStream(ws, "upload "+string(current.Status))
			return nil
		}
	}
}

func (h *WatchHandlerImpl) sendStatus(ws *websocket.Conn, u *models.Upload) error {
	status := models.NewUploadStatusResponse(u)
	return h.send(ws, WatchMessage{Type: MsgTypeStatus, UploadID: u.ID, Upload: &status})
}

func (h *WatchHandlerImpl) send(ws *websocket.Conn, msg WatchMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		h.logger.Debugf("[Watch %s] write failed: %v", msg.UploadID, err)
		return err
	}
	return nil
}

func (h *WatchHandlerImpl) closeStream(ws *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
