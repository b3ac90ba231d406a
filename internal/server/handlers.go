package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// User-facing error messages.
const (
	msgNotImage     = "Only image files are allowed."
	msgInvalidImage = "Invalid image file."
	msgNoText       = "No text detected in image."
	msgOCRFailed    = "OCR failed to extract data."
	msgNoFile       = "No file uploaded."
	msgTooLarge     = "File too large."
	msgTimeout      = "Processing timed out."
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// requirementsHandler lists required and missing documents for a nationality.
// Uploaded types come as a comma-separated "uploaded" query parameter.
func (s *Server) requirementsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, err := extract.ParseNationality(r.URL.Query().Get("nationality"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var uploaded []extract.DocumentType
	for part := range strings.SplitSeq(r.URL.Query().Get("uploaded"), ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := extract.ParseDocumentType(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploaded = append(uploaded, t)
	}
	required, err := extract.RequiredDocuments(n)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	missing, err := extract.MissingDocuments(n, uploaded)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if missing == nil {
		missing = []extract.DocumentType{}
	}
	writeJSON(w, http.StatusOK, RequirementsResponse{Nationality: n, Required: required, Missing: missing})
}

// documentHandler extracts a record of type t from the uploaded "file".
func (s *Server) documentHandler(t extract.DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		logger := loggerFrom(r.Context()).With("document", string(t))

		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
		if err := r.ParseMultipartForm(s.maxUploadMB << 20); err != nil {
			documentRequestsTotal.WithLabelValues(string(t), "invalid").Inc()
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
				return
			}
			writeError(w, http.StatusBadRequest, msgNoFile)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			documentRequestsTotal.WithLabelValues(string(t), "invalid").Inc()
			writeError(w, http.StatusBadRequest, msgNoFile)
			return
		}
		defer func() { _ = file.Close() }()

		if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
			documentRequestsTotal.WithLabelValues(string(t), "invalid").Inc()
			writeError(w, http.StatusBadRequest, msgNotImage)
			return
		}
		uploadSizeBytes.Observe(float64(header.Size))

		path, err := saveUpload(file, header)
		if err != nil {
			logger.Error("failed to store upload", "error", err)
			documentRequestsTotal.WithLabelValues(string(t), "error").Inc()
			writeError(w, http.StatusInternalServerError, msgOCRFailed)
			return
		}
		defer func() { _ = os.Remove(path) }()

		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		start := time.Now()
		out, err := s.pipeline.Process(ctx, t, pipeline.FromPath(path))
		documentProcessingDuration.WithLabelValues(string(t)).Observe(time.Since(start).Seconds())
		if out != nil {
			documentDetections.WithLabelValues(string(t)).Observe(float64(len(out.Detections)))
			passFailuresTotal.WithLabelValues(string(t)).Add(float64(out.FailedPasses()))
		}

		status, msg, label := classify(err)
		documentRequestsTotal.WithLabelValues(string(t), label).Inc()
		if err != nil {
			logger.Warn("document extraction failed", "status", status, "error", err)
			writeError(w, status, msg)
			return
		}
		logger.Info("document extracted", "duration", time.Since(start), "detections", len(out.Detections))
		writeJSON(w, http.StatusOK, DataResponse{Data: out.Record})
	}
}

// classify maps a pipeline error to an HTTP status, message and metric label.
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusOK, "", "success"
	case errors.Is(err, pipeline.ErrImageDecode):
		return http.StatusBadRequest, msgInvalidImage, "invalid"
	case pipeline.IsNoText(err):
		return http.StatusUnprocessableEntity, msgNoText, "no_text"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout, "error"
	default:
		return http.StatusInternalServerError, msgOCRFailed, "error"
	}
}

// saveUpload copies the upload to a uniquely named temp file.
func saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if len(ext) > 8 {
		ext = ""
	}
	tmp, err := os.CreateTemp("", "docverify-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
