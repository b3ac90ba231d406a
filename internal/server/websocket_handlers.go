package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketRequest asks for one document extraction. Image is the
// base64-encoded file content.
type WebSocketRequest struct {
	Type  string `json:"type"`
	Image []byte `json:"image"`
}

// WebSocketResponse reports the state of a request.
type WebSocketResponse struct {
	Status    string `json:"status"` // "processing", "completed", "error"
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ocrWebSocketHandler handles WebSocket connections for document extraction.
func (s *Server) ocrWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	logger := loggerFrom(r.Context())
	logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn, logger)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn *websocket.Conn, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Status: "error",
			Error:  fmt.Sprintf("Failed to parse request: %v", err),
		})
		return
	}
	requestID := uuid.NewString()

	t, err := extract.ParseDocumentType(req.Type)
	if err != nil {
		s.sendWebSocketResponse(conn, WebSocketResponse{Status: "error", Error: err.Error(), RequestID: requestID})
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketResponse(conn, WebSocketResponse{Status: "error", Error: msgNoFile, RequestID: requestID})
		return
	}
	if int64(len(req.Image)) > s.maxUploadMB<<20 {
		s.sendWebSocketResponse(conn, WebSocketResponse{Status: "error", Error: msgTooLarge, RequestID: requestID})
		return
	}
	uploadSizeBytes.Observe(float64(len(req.Image)))

	s.sendWebSocketResponse(conn, WebSocketResponse{Status: "processing", RequestID: requestID})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	out, err := s.pipeline.Process(ctx, t, pipeline.FromBytes(req.Image))
	documentProcessingDuration.WithLabelValues(string(t)).Observe(time.Since(start).Seconds())

	_, msg, label := classify(err)
	documentRequestsTotal.WithLabelValues(string(t), label).Inc()
	if err != nil {
		s.sendWebSocketResponse(conn, WebSocketResponse{Status: "error", Error: msg, RequestID: requestID})
		return
	}
	documentDetections.WithLabelValues(string(t)).Observe(float64(len(out.Detections)))
	passFailuresTotal.WithLabelValues(string(t)).Add(float64(out.FailedPasses()))
	s.sendWebSocketResponse(conn, WebSocketResponse{Status: "completed", Result: out.Record, RequestID: requestID})
}

func (s *Server) sendWebSocketResponse(conn *websocket.Conn, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
