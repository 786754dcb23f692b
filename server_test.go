package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, *Registry, *fakeOpener) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.UploadDir = t.TempDir()

	opener := &fakeOpener{source: &fakeSource{frames: 1}}
	registry := newRegistry(cfg, &stubDetector{}, nil, nil)
	registry.open = opener.open
	return newServer(cfg, registry, newMetrics()), registry, opener
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func uploadRequest(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("videoFile", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("not a real video"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := testServer(t)
	rec, parsed := doJSON(t, server.Router(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", parsed["status"])
}

func TestInvalidFeedParam(t *testing.T) {
	server, _, _ := testServer(t)
	router := server.Router()

	rec, parsed := doJSON(t, router, http.MethodGet, "/stats/abc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "invalid feed index", parsed["message"])

	_, parsed = doJSON(t, router, http.MethodGet, "/stats/9", nil)
	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "invalid feed index 9", parsed["message"])
}

func TestStatsDefaultSnapshot(t *testing.T) {
	server, _, _ := testServer(t)
	_, parsed := doJSON(t, server.Router(), http.MethodGet, "/stats/0", nil)

	assert.Equal(t, true, parsed["success"])
	assert.Equal(t, AlertNormal, parsed["alert"])
	assert.Equal(t, AlertNormal, parsed["alert_message"])
	assert.Equal(t, float64(0), parsed["people_count"])
	assert.Nil(t, parsed["pred_density"])
}

func TestUploadRejectsBadExtension(t *testing.T) {
	server, _, _ := testServer(t)
	body, contentType := uploadRequest(t, "malware.exe")

	req := httptest.NewRequest(http.MethodPost, "/upload/0", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "file type not allowed", parsed["message"])
}

func TestUploadMissingFilePart(t *testing.T) {
	server, _, _ := testServer(t)
	_, parsed := doJSON(t, server.Router(), http.MethodPost, "/upload/0", nil)

	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "no file part in the request", parsed["message"])
}

func TestUploadStoresFileUnderUniqueName(t *testing.T) {
	server, registry, _ := testServer(t)
	body, contentType := uploadRequest(t, "crowd clip.mp4")

	req := httptest.NewRequest(http.MethodPost, "/upload/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, true, parsed["success"])

	stored, ok := parsed["filepath"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(stored, ".mp4"))
	assert.Contains(t, stored, "crowd clip_")

	_, err := os.Stat(stored)
	require.NoError(t, err)

	feed, _ := registry.Feed(1)
	assert.Equal(t, stored, feed.UploadPath())
}

func TestStartFileWithoutUploadViaHTTP(t *testing.T) {
	server, _, _ := testServer(t)
	_, parsed := doJSON(t, server.Router(), http.MethodPost, "/start/0",
		startRequest{SourceType: "file"})

	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "no video file uploaded yet, please upload a file first", parsed["message"])
}

func TestStartAndStopViaHTTP(t *testing.T) {
	server, registry, _ := testServer(t)
	router := server.Router()

	_, parsed := doJSON(t, router, http.MethodPost, "/start/0",
		startRequest{SourceType: "webcam", SourcePath: "0"})
	assert.Equal(t, true, parsed["success"])

	feed, _ := registry.Feed(0)
	assert.True(t, feed.Active())

	_, parsed = doJSON(t, router, http.MethodPost, "/start/0",
		startRequest{SourceType: "webcam", SourcePath: "0"})
	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "processing already active", parsed["message"])

	_, parsed = doJSON(t, router, http.MethodPost, "/stop/0", nil)
	assert.Equal(t, true, parsed["success"])
	assert.False(t, feed.Active())

	// A second stop is still a success.
	_, parsed = doJSON(t, router, http.MethodPost, "/stop/0", nil)
	assert.Equal(t, true, parsed["success"])
}

func TestSetROIViaHTTP(t *testing.T) {
	server, registry, _ := testServer(t)

	feed, _ := registry.Feed(0)
	feed.proc.SetSource(&fakeSource{frames: 1}, 640, 480)

	_, parsed := doJSON(t, server.Router(), http.MethodPost, "/roi/0",
		roiRequest{X: 25, Y: 25, W: 50, H: 50})
	require.Equal(t, true, parsed["success"])

	roi, ok := parsed["roi"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(160), roi["x"])
	assert.Equal(t, float64(120), roi["y"])
	assert.Equal(t, float64(320), roi["w"])
	assert.Equal(t, float64(240), roi["h"])
}

func TestAlertsEmptyByDefault(t *testing.T) {
	server, _, _ := testServer(t)
	_, parsed := doJSON(t, server.Router(), http.MethodGet, "/alerts/0", nil)

	assert.Equal(t, true, parsed["success"])
	assert.Empty(t, parsed["alerts"])
}

func TestHistoryEndpoints(t *testing.T) {
	server, registry, _ := testServer(t)
	router := server.Router()

	_, parsed := doJSON(t, router, http.MethodGet, "/history/2", nil)
	assert.Equal(t, true, parsed["success"])
	assert.Empty(t, parsed["history"])

	feed, _ := registry.Feed(2)
	feed.proc.headCounts.Record(mustParseAlertTime(t, "2026-08-28 09:30:00"), 12)

	_, parsed = doJSON(t, router, http.MethodGet, "/history/2", nil)
	history, ok := parsed["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "2026-08-28 09:30:00", entry["time"])
	assert.Equal(t, float64(12), entry["people_count"])
	assert.Equal(t, float64(2), entry["webcam_index"])

	_, parsed = doJSON(t, router, http.MethodGet, "/history", nil)
	all, ok := parsed["all_histories"].([]any)
	require.True(t, ok)
	assert.Len(t, all, 4)
}

func mustParseAlertTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(alertTimeLayout, s, time.Local)
	require.NoError(t, err)
	return ts
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := testServer(t)
	server.metrics.ObserveFrame(0, 3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crowd_frames_processed_total")
}
