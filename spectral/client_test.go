package spectral

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

func encodePayload(t *testing.T, v interface{}) []byte {
	t.Helper()

	var packed []byte
	require.NoError(t, codec.NewEncoderBytes(&packed, &codec.MsgpackHandle{}).Encode(v))

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(packed)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func analysisServer(t *testing.T, payload []byte, gotFile *[]byte) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if gotFile != nil {
			*gotFile, _ = io.ReadAll(file)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	}))
}

func TestSubmitPreservesBinFrameOrder(t *testing.T) {
	magnitude := [][]float64{
		{0, 1, 2, 3},
		{10, 11, 12, 13},
		{20, 21, 22, 23},
	}
	var received []byte
	srv := analysisServer(t, encodePayload(t, magnitude), &received)
	defer srv.Close()

	client := NewClient(srv.URL)
	matrix, err := client.Submit(context.Background(), "song.wav", bytes.NewReader([]byte("audio-bytes")))
	require.NoError(t, err)

	assert.Equal(t, []byte("audio-bytes"), received)
	assert.Equal(t, 3, matrix.BinCount())
	assert.Equal(t, 4, matrix.FrameCount())
	assert.Equal(t, magnitude, matrix.Magnitude)
	assert.Equal(t, DefaultSampleRate, matrix.SampleRate)
	assert.Equal(t, DefaultHopLength, matrix.HopLength)

	assert.Equal(t, []float64{2, 12, 22}, matrix.Frame(2, nil))
}

func TestSubmitSelfDescribingPayload(t *testing.T) {
	payload := encodePayload(t, map[string]interface{}{
		"sample_rate": 4500,
		"hop_length":  64,
		"magnitude":   [][]float64{{-80, -40}, {-20, 0}},
	})
	srv := analysisServer(t, payload, nil)
	defer srv.Close()

	matrix, err := NewClient(srv.URL).SubmitBytes(context.Background(), "song.mp3", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 4500, matrix.SampleRate)
	assert.Equal(t, 64, matrix.HopLength)
	assert.Equal(t, [][]float64{{-80, -40}, {-20, 0}}, matrix.Magnitude)
}

func TestSubmitIntegerCells(t *testing.T) {
	srv := analysisServer(t, encodePayload(t, [][]int{{1, -2}, {3, 4}}), nil)
	defer srv.Close()

	matrix, err := NewClient(srv.URL, WithContract(1000, 10)).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, -2}, {3, 4}}, matrix.Magnitude)
	assert.Equal(t, 1000, matrix.SampleRate)
	assert.Equal(t, 10, matrix.HopLength)
}

func TestSubmitServerErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "analysis crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)

	var formatErr *FormatError
	assert.False(t, errors.As(err, &formatErr))
}

func TestSubmitUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Zero(t, transportErr.StatusCode)
}

func TestSubmitUndecodablePayloadIsFormatError(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "not compressed", payload: []byte("plain text body")},
		{name: "compressed garbage", payload: encodePayload(t, "just a string")},
		{name: "ragged matrix", payload: encodePayload(t, [][]float64{{1, 2}, {3}})},
		{name: "empty matrix", payload: encodePayload(t, [][]float64{})},
		{name: "map without magnitude", payload: encodePayload(t, map[string]interface{}{"sample_rate": 8192})},
		{name: "non-numeric cell", payload: encodePayload(t, [][]interface{}{{1, "two"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := analysisServer(t, tt.payload, nil)
			defer srv.Close()

			_, err := NewClient(srv.URL).SubmitBytes(context.Background(), "a.wav", []byte("x"))
			var formatErr *FormatError
			require.True(t, errors.As(err, &formatErr), "got %v", err)

			var transportErr *TransportError
			assert.False(t, errors.As(err, &transportErr))
		})
	}
}

func TestSubmitRetriesOnlyTransportFailures(t *testing.T) {
	var calls int32
	payload := encodePayload(t, [][]float64{{1}})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	matrix, err := NewClient(srv.URL, WithRetries(2, time.Millisecond)).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, matrix.FrameCount())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = NewClient(srv.URL).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry by default")
}

func TestSubmitDoesNotRetryFormatErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("garbage"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetries(3, time.Millisecond)).SubmitBytes(context.Background(), "a.wav", []byte("x"))
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecodeNullCellsBecomeNaN(t *testing.T) {
	payload := encodePayload(t, []interface{}{[]interface{}{1.5, nil}})

	matrix, err := NewClient("unused").Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 1.5, matrix.Magnitude[0][0])
	assert.True(t, math.IsNaN(matrix.Magnitude[0][1]))
}
