// Package server exposes the document extraction pipeline over HTTP and
// WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// Processor is the part of *pipeline.Pipeline the server uses.
type Processor interface {
	Process(ctx context.Context, t extract.DocumentType, src pipeline.Source) (*pipeline.Outcome, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    Processor
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	limiter     *RateLimiter
	version     string
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
	Version   string
}

// DataResponse wraps a successful extraction.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse carries a user-facing error message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// RequirementsResponse lists the documents an applicant must upload.
type RequirementsResponse struct {
	Nationality extract.Nationality    `json:"nationality"`
	Required    []extract.DocumentType `json:"required"`
	Missing     []extract.DocumentType `json:"missing"`
}

// documentRoutes maps upload routes to the document type they extract.
var documentRoutes = map[string]extract.DocumentType{
	"/noc/nicop-front":    extract.NICOPFrontType,
	"/noc/nicop-back":     extract.NICOPBackType,
	"/noc/passport-front": extract.PassportType,
	"/noc/iqama-front":    extract.IqamaType,
}

// NewServer creates a server around p.
func NewServer(cfg Config, p Processor) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 60
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	s := &Server{
		pipeline:    p,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		version:     cfg.Version,
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, max(cfg.RateBurst, 1))
	}
	return s, nil
}

// Close stops background work.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/documents/requirements", s.corsMiddleware(s.requirementsHandler))
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.ocrWebSocketHandler))
	for path, t := range documentRoutes {
		mux.HandleFunc(path, s.corsMiddleware(s.rateLimitMiddleware(s.documentHandler(t))))
	}
}

// Handler returns the routes wrapped in request ID middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return requestIDMiddleware(mux)
}
