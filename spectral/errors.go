package spectral

import "fmt"

// TransportError reports a network or server failure talking to the
// analysis endpoint. StatusCode is zero when no response arrived.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("spectral transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("spectral transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormatError reports a payload that arrived but could not be decoded
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("spectral payload error: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
