package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Detail
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	require.Error(t, err)

	s := newTestServer(t, Config{}, &fakeProcessor{})
	assert.Equal(t, "*", s.corsOrigin)
	assert.Equal(t, int64(10), s.maxUploadMB)
	assert.Nil(t, s.limiter)

	s = newTestServer(t, Config{RateLimit: 2, CORSOrigin: "https://noc.example"}, &fakeProcessor{})
	assert.NotNil(t, s.limiter)
	assert.Equal(t, "https://noc.example", s.corsOrigin)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, Config{Version: "1.2.3"}, &fakeProcessor{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDocumentHandler_Success(t *testing.T) {
	routes := map[string]extract.Record{
		"/noc/nicop-front":    &extract.NICOPFront{Name: "Muhammad Ali"},
		"/noc/nicop-back":     &extract.NICOPBack{PresentAddress: "House 1", PermanentAddress: "House 2"},
		"/noc/passport-front": &extract.Passport{PassportNumber: "AB1234567"},
		"/noc/iqama-front":    &extract.Iqama{},
	}
	for path, record := range routes {
		t.Run(path, func(t *testing.T) {
			fp := successProcessor(record)
			s := newTestServer(t, Config{}, fp)

			rec := serve(s, uploadRequest(t, path, "image/png", pngBytes))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			want, err := json.Marshal(record)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(body["data"]))

			require.Len(t, fp.calls, 1)
			assert.Equal(t, documentRoutes[path], fp.calls[0])
			assert.True(t, fp.existed[0], "upload stored while processing")
			_, err = os.Stat(fp.sources[0])
			assert.True(t, os.IsNotExist(err), "temp file removed afterwards")
		})
	}
}

func TestDocumentHandler_Errors(t *testing.T) {
	decodeErr := &utils.ImageDecodeError{Source: "upload", Err: errors.New("bad header")}
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"decode", decodeErr, http.StatusBadRequest, msgInvalidImage},
		{"no text", wrapErr(pipeline.ErrNoTextDetected), http.StatusUnprocessableEntity, msgNoText},
		{"extraction", &extract.FieldExtractionError{Document: extract.PassportType, Err: extract.ErrMalformedDetection}, http.StatusInternalServerError, msgOCRFailed},
		{"other", errors.New("engine exploded"), http.StatusInternalServerError, msgOCRFailed},
		{"timeout", wrapErr(context.DeadlineExceeded), http.StatusGatewayTimeout, msgTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{}, &fakeProcessor{err: tt.err})
			rec := serve(s, uploadRequest(t, "/noc/passport-front", "image/jpeg", pngBytes))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
		})
	}
}

func TestDocumentHandler_RejectsUploads(t *testing.T) {
	fp := &fakeProcessor{}
	s := newTestServer(t, Config{MaxUploadMB: 1}, fp)

	t.Run("not an image", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/noc/nicop-front", "application/pdf", pngBytes))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Only image files are allowed.", decodeDetail(t, rec))
	})

	t.Run("missing content type", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/noc/nicop-front", "", pngBytes))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgNotImage, decodeDetail(t, rec))
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/noc/nicop-front", bytes.NewBufferString("x"))
		req.Header.Set("Content-Type", "text/plain")
		rec := serve(s, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgNoFile, decodeDetail(t, rec))
	})

	t.Run("too large", func(t *testing.T) {
		big := bytes.Repeat([]byte{0xff}, 2<<20)
		rec := serve(s, uploadRequest(t, "/noc/nicop-front", "image/png", big))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, msgTooLarge, decodeDetail(t, rec))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/noc/nicop-front", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	assert.Empty(t, fp.calls)
}

func TestRequirementsHandler(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeProcessor{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/documents/requirements?nationality=pakistani&uploaded=passport,nicop-front", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RequirementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, extract.Pakistani, resp.Nationality)
	assert.ElementsMatch(t, []extract.DocumentType{
		extract.PassportType, extract.IqamaType, extract.NICOPFrontType, extract.NICOPBackType,
	}, resp.Required)
	assert.ElementsMatch(t, []extract.DocumentType{extract.IqamaType, extract.NICOPBackType}, resp.Missing)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/documents/requirements?nationality=saudi&uploaded=saudi_national_id", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Missing)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/documents/requirements?nationality=martian", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/documents/requirements?nationality=saudi&uploaded=selfie", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{}, successProcessor(&extract.NICOPBack{}))
	serve(s, uploadRequest(t, "/noc/nicop-back", "image/png", pngBytes))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docverify_document_requests_total{document="nicop_back",status="success"}`)
	assert.Contains(t, rec.Body.String(), "docverify_http_requests_total")
}
