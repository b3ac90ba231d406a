package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// fakeProcessor records calls and returns a canned outcome.
type fakeProcessor struct {
	mu      sync.Mutex
	outcome *pipeline.Outcome
	err     error
	calls   []extract.DocumentType
	// existed reports whether the temp upload was on disk during the call.
	existed []bool
	sources []string
}

func (f *fakeProcessor) Process(ctx context.Context, t extract.DocumentType, src pipeline.Source) (*pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, t)
	f.sources = append(f.sources, src.String())
	_, statErr := os.Stat(src.String())
	f.existed = append(f.existed, statErr == nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.outcome, f.err
}

func successProcessor(rec extract.Record) *fakeProcessor {
	return &fakeProcessor{outcome: &pipeline.Outcome{Document: rec.DocumentType(), Record: rec}}
}

func newTestServer(t *testing.T, cfg Config, p Processor) *Server {
	t.Helper()
	s, err := NewServer(cfg, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// uploadRequest builds a multipart POST with one "file" part.
func uploadRequest(t *testing.T, path, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="card.png"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func wrapErr(err error) error { return fmt.Errorf("process: %w", err) }
