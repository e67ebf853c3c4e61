package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWatch(t *testing.T, s *testServer, id, customer string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + apiPath("uploads", id, "watch") + "?customer_id=" + customer
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { ws.Close() })
	}
	return ws, resp, err
}

func readWatch(t *testing.T, ws *websocket.Conn) WatchMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WatchMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWatchUpload_StreamsUntilTerminal(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	u, err := s.store.CreateUpload(ctx, "cust-1", "chat.json", []byte(`[]`), 2)
	require.NoError(t, err)

	ws, _, err := dialWatch(t, s, u.ID, "cust-1")
	require.NoError(t, err)

	msg := readWatch(t, ws)
	assert.Equal(t, MsgTypeStatus, msg.Type)
	require.NotNil(t, msg.Upload)
	assert.Equal(t, models.StatusPending, msg.Upload.Status)

	_, err = s.store.UpdateStatus(ctx, u.ID, models.StatusProcessing, 50)
	require.NoError(t, err)
	msg = readWatch(t, ws)
	assert.Equal(t, models.StatusProcessing, msg.Upload.Status)
	assert.Equal(t, 50, msg.Upload.Progress)

	_, err = s.store.UpdateStatus(ctx, u.ID, models.StatusCompleted, 100)
	require.NoError(t, err)
	msg = readWatch(t, ws)
	assert.Equal(t, models.StatusCompleted, msg.Upload.Status)
	assert.Equal(t, 100, msg.Upload.Progress)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWatchUpload_TerminalClosesImmediately(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	u, err := s.store.CreateUpload(ctx, "cust-1", "chat.json", []byte(`[]`), 2)
	require.NoError(t, err)
	_, err = s.store.UpdateStatus(ctx, u.ID, models.StatusFailed, 0)
	require.NoError(t, err)

	ws, _, err := dialWatch(t, s, u.ID, "cust-1")
	require.NoError(t, err)

	msg := readWatch(t, ws)
	assert.Equal(t, models.StatusFailed, msg.Upload.Status)

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWatchUpload_Deleted(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	u, err := s.store.CreateUpload(ctx, "cust-1", "chat.json", []byte(`[]`), 2)
	require.NoError(t, err)

	ws, _, err := dialWatch(t, s, u.ID, "cust-1")
	require.NoError(t, err)
	readWatch(t, ws)

	ok, err := s.store.DeleteUpload(ctx, u.ID, "cust-1")
	require.NoError(t, err)
	require.True(t, ok)

	msg := readWatch(t, ws)
	assert.Equal(t, MsgTypeDeleted, msg.Type)
	assert.Equal(t, u.ID, msg.UploadID)
}

func TestWatchUpload_NotFoundBeforeUpgrade(t *testing.T) {
	s := newTestServer(t)
	u, err := s.store.CreateUpload(context.Background(), "cust-1", "chat.json", []byte(`[]`), 2)
	require.NoError(t, err)

	_, resp, err := dialWatch(t, s, u.ID, "cust-2")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
