package spectral

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ugorji/go/codec"

	"waveanalyzer/logger"
)

// maxPayloadBytes bounds the inflated payload
const maxPayloadBytes = 512 << 20

// Client submits audio files to the spectral analysis service
type Client struct {
	endpoint   string
	httpClient *http.Client
	sampleRate int
	hopLength  int
	retries    int
	retryDelay time.Duration
	handle     *codec.MsgpackHandle
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries enables up to n additional attempts after a transport
// failure. Format errors are never retried.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
		c.retryDelay = delay
	}
}

// WithContract sets the sample rate and hop length assumed for payloads
// that do not carry their own
func WithContract(sampleRate, hopLength int) Option {
	return func(c *Client) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}
		if hopLength > 0 {
			c.hopLength = hopLength
		}
	}
}

// NewClient creates a client posting to endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	h := &codec.MsgpackHandle{}
	h.RawToString = true

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		sampleRate: DefaultSampleRate,
		hopLength:  DefaultHopLength,
		retryDelay: time.Second,
		handle:     h,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the analysis URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit uploads the file as multipart field "file" and decodes the
// compressed matrix in the response
func (c *Client) Submit(ctx context.Context, filename string, r io.Reader) (*Matrix, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return c.SubmitBytes(ctx, filename, data)
}

// SubmitBytes is Submit over an in-memory file
func (c *Client) SubmitBytes(ctx context.Context, filename string, data []byte) (*Matrix, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			logger.Warnf("Retrying spectral analysis of %s (attempt %d): %v", filename, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		payload, err := c.post(ctx, filename, data)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		return c.Decode(payload)
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, filename string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &TransportError{Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(snippet)),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	return payload, nil
}

// Decode inflates and deserializes a payload. Both the bare [bin][frame]
// array and the {sample_rate, hop_length, magnitude} map are accepted.
func (c *Client) Decode(payload []byte) (*Matrix, error) {
	raw, err := inflate(payload)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	var decoded interface{}
	if err := codec.NewDecoderBytes(raw, c.handle).Decode(&decoded); err != nil {
		return nil, &FormatError{Err: fmt.Errorf("msgpack: %w", err)}
	}

	sampleRate, hopLength := c.sampleRate, c.hopLength
	rows := decoded

	if m, ok := asMap(decoded); ok {
		if v, ok := m["sample_rate"]; ok {
			sr, ok := toFloat(v)
			if !ok {
				return nil, &FormatError{Err: errors.New("sample_rate is not a number")}
			}
			sampleRate = int(sr)
		}
		if v, ok := m["hop_length"]; ok {
			hop, ok := toFloat(v)
			if !ok {
				return nil, &FormatError{Err: errors.New("hop_length is not a number")}
			}
			hopLength = int(hop)
		}
		rows, ok = m["magnitude"]
		if !ok {
			return nil, &FormatError{Err: errors.New("payload map has no magnitude")}
		}
	}

	magnitude, err := toMagnitude(rows)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	matrix, err := NewMatrix(magnitude, sampleRate, hopLength)
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	return matrix, nil
}

func inflate(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, errors.New("payload too short")
	}

	var (
		rc  io.ReadCloser
		err error
	)
	if payload[0] == 0x1f && payload[1] == 0x8b {
		rc, err = gzip.NewReader(bytes.NewReader(payload))
	} else {
		rc, err = zlib.NewReader(bytes.NewReader(payload))
	}
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw) > maxPayloadBytes {
		return nil, errors.New("decompressed payload too large")
	}
	return raw, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			switch key := k.(type) {
			case string:
				out[key] = val
			case []byte:
				out[string(key)] = val
			}
		}
		return out, true
	}
	return nil, false
}

func toMagnitude(v interface{}) ([][]float64, error) {
	rows, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array of bins, got %T", v)
	}

	magnitude := make([][]float64, len(rows))
	for b, r := range rows {
		cols, ok := r.([]interface{})
		if !ok {
			return nil, fmt.Errorf("bin %d: expected array of frames, got %T", b, r)
		}
		row := make([]float64, len(cols))
		for f, cell := range cols {
			if cell == nil {
				// null cells become non-finite and are filtered at render time
				row[f] = math.NaN()
				continue
			}
			val, ok := toFloat(cell)
			if !ok {
				return nil, fmt.Errorf("bin %d frame %d: not a number (%T)", b, f, cell)
			}
			row[f] = val
		}
		magnitude[b] = row
	}
	return magnitude, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	}
	return 0, false
}
