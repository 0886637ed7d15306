// Package resilience classifies external-call failures and retries the
// transient ones. Enrichment providers (geocoder, places, solar) fail often
// enough that every outbound call in the pipeline goes through here.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Transient marks an error as safe to retry. Clients wrap rate-limit and
// server-side failures with it; everything else fails fast.
type Transient struct {
	Err        error
	StatusCode int
}

func (t *Transient) Error() string { return t.Err.Error() }

func (t *Transient) Unwrap() error { return t.Err }

// MarkTransient wraps err as retryable, recording the HTTP status when the
// failure came off the wire (0 otherwise).
func MarkTransient(err error, statusCode int) *Transient {
	return &Transient{Err: err, StatusCode: statusCode}
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// netPatterns catches transient failures that surface as opaque wrapped
// strings from HTTP clients.
var netPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
}

// IsTransient reports whether err, anywhere in its chain, is retryable:
// an explicit Transient mark, a network timeout, or a connection-level fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var t *Transient
	if errors.As(err, &t) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range netPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
