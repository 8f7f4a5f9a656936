package main

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"

	"waveanalyzer/cmd"
	"waveanalyzer/config"
	"waveanalyzer/logger"
	"waveanalyzer/types"
)

const (
	testBins   = 64
	testFrames = 40
	testPeak   = 20
)

// TestHelper runs the wired server against a fake spectral service
type TestHelper struct {
	Server    *httptest.Server
	Spectral  *httptest.Server
	App       *cmd.Server
	UploadDir string
}

// NewTestHelper creates a server with in-memory storage in a temporary
// upload directory
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.SetLevel("error")

	dir := t.TempDir()
	t.Setenv("WAVEANALYZER_SETTINGS", filepath.Join(dir, "settings.json"))

	spectralServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(spectralPayload(t))
	}))

	cfg := config.Config{
		CORSOrigins:        []string{"http://localhost:5173"},
		LogLevel:           "error",
		UploadLocation:     filepath.Join(dir, "uploads"),
		SpectralEndpoint:   spectralServer.URL,
		SpectralTimeout:    5 * time.Second,
		SpectralSampleRate: 8192,
		SpectralHopLength:  916,
		FrameRate:          100,
		WaveformChunks:     300,
		AnalysisJobs:       1,
	}

	app, err := cmd.NewServer(context.Background(), cfg)
	require.NoError(t, err)
	app.Start()

	h := &TestHelper{
		Server:    httptest.NewServer(app.Router),
		Spectral:  spectralServer,
		App:       app,
		UploadDir: cfg.UploadLocation,
	}
	t.Cleanup(func() { h.Cleanup(t) })
	return h
}

// Cleanup stops the servers and the background services
func (h *TestHelper) Cleanup(t *testing.T) {
	h.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.App.Shutdown(ctx); err != nil {
		t.Logf("shutdown: %v", err)
	}
	h.Spectral.Close()
}

// spectralPayload is a zlib-compressed msgpack matrix with one loud bin
func spectralPayload(t *testing.T) []byte {
	magnitude := make([][]float64, testBins)
	for b := range magnitude {
		magnitude[b] = make([]float64, testFrames)
		for f := range magnitude[b] {
			if b == testPeak {
				magnitude[b][f] = 1
			} else {
				magnitude[b][f] = 0.05
			}
		}
	}

	var packed []byte
	err := codec.NewEncoderBytes(&packed, &codec.MsgpackHandle{}).Encode(map[string]interface{}{
		"sample_rate": 8192,
		"hop_length":  916,
		"magnitude":   magnitude,
	})
	if err != nil {
		t.Errorf("encode payload: %v", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(packed)
	zw.Close()
	return buf.Bytes()
}

// generateWAV renders a mono 16-bit 440 Hz sine
func generateWAV(t *testing.T, seconds float64, sampleRate int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	frames := int(seconds * float64(sampleRate))
	data := make([]int, frames)
	for i := range data {
		data[i] = int(math.Round(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// DoJSON makes a request and decodes the response into target
func (h *TestHelper) DoJSON(t *testing.T, method, path string, body, target interface{}) *http.Response {
	t.Helper()

	resp := h.MakeRequest(t, method, path, body)
	defer resp.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp
}

// GetJSON makes a GET request and decodes the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.DoJSON(t, http.MethodGet, path, nil, target)
}

// PostJSON makes a POST request with a JSON body and decodes the response
func (h *TestHelper) PostJSON(t *testing.T, path string, body, target interface{}) *http.Response {
	return h.DoJSON(t, http.MethodPost, path, body, target)
}

// Upload posts a multipart form with the file under field "file"
func (h *TestHelper) Upload(t *testing.T, path, filename string, content []byte, fields map[string]string, target interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(h.Server.URL+path, writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp
}

type sessionResponse struct {
	Session struct {
		ID        string              `json:"id"`
		ProjectID string              `json:"projectId"`
		Status    types.SessionStatus `json:"status"`
		Selection *struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"selection"`
	} `json:"session"`
	Job *types.AnalysisJob `json:"job"`
}

type jobResponse struct {
	Job *types.AnalysisJob `json:"job"`
}

// CreateSession opens a 1000x300 session
func (h *TestHelper) CreateSession(t *testing.T, projectID string) sessionResponse {
	t.Helper()

	var created sessionResponse
	resp := h.PostJSON(t, "/api/sessions", map[string]interface{}{
		"projectId": projectID,
		"width":     1000,
		"height":    300,
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.Session.ID)
	return created
}

// LoadTrack uploads a generated track into the session and waits for it
func (h *TestHelper) LoadTrack(t *testing.T, sessionID string, seconds float64) *types.AnalysisJob {
	t.Helper()

	var queued jobResponse
	resp := h.Upload(t, "/api/sessions/"+sessionID+"/track", "tone.wav", generateWAV(t, seconds, 8000), nil, &queued)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, queued.Job)
	return h.WaitForJob(t, queued.Job.ID, types.JobStatusReady, 5*time.Second)
}

// WaitForJob polls a job until it reaches status
func (h *TestHelper) WaitForJob(t *testing.T, jobID string, status types.JobStatus, timeout time.Duration) *types.AnalysisJob {
	t.Helper()

	var job *types.AnalysisJob
	require.Eventually(t, func() bool {
		var got jobResponse
		resp := h.GetJSON(t, "/api/jobs/"+jobID, &got)
		if resp.StatusCode != http.StatusOK || got.Job == nil {
			return false
		}
		job = got.Job
		return job.Status == status
	}, timeout, 10*time.Millisecond)
	return job
}

// ConnectWebSocket connects to a websocket endpoint of the test server
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}
