package server

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) WebSocketResponse {
	t.Helper()
	var resp WebSocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocket_Completed(t *testing.T) {
	fp := successProcessor(&extract.NICOPBack{PresentAddress: "House 1", PermanentAddress: "House 2"})
	conn := dialWebSocket(t, newTestServer(t, Config{}, fp))

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Type: "nicop-back", Image: pngBytes}))

	first := readResponse(t, conn)
	assert.Equal(t, "processing", first.Status)
	assert.NotEmpty(t, first.RequestID)

	done := readResponse(t, conn)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, first.RequestID, done.RequestID)
	result, ok := done.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "House 1", result["present_address"])

	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Equal(t, []extract.DocumentType{extract.NICOPBackType}, fp.calls)
}

func TestWebSocket_Errors(t *testing.T) {
	fp := &fakeProcessor{err: wrapErr(pipeline.ErrNoTextDetected)}
	conn := dialWebSocket(t, newTestServer(t, Config{}, fp))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	resp := readResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "Failed to parse request")

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Type: "driving_licence", Image: pngBytes}))
	resp = readResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unknown document type")

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Type: "iqama"}))
	assert.Equal(t, msgNoFile, readResponse(t, conn).Error)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Type: "iqama", Image: pngBytes}))
	assert.Equal(t, "processing", readResponse(t, conn).Status)
	resp = readResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, msgNoText, resp.Error)
}

func TestClassify(t *testing.T) {
	status, _, label := classify(nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "success", label)

	_, msg, label := classify(errors.New("boom"))
	assert.Equal(t, msgOCRFailed, msg)
	assert.Equal(t, "error", label)
}
