package submit

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// classifyTransport maps a failed round trip to the error taxonomy.
// Timeouts and connection failures are both retryable; they differ only in
// code so callers can distinguish slow endpoints from unreachable ones.
func classifyTransport(err error) *scoreerr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return scoreerr.Wrap(scoreerr.CodeTimeout, "request timed out", true, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return scoreerr.Wrap(scoreerr.CodeTimeout, "request timed out", true, err)
	}
	return scoreerr.Wrap(scoreerr.CodeNetwork, "transport failure", true, err)
}

// classifyStatus maps a non-2xx response to the taxonomy. Server-side and
// congestion statuses are retryable; other client errors are not, since
// retries cannot fix a request the server has already rejected as malformed.
func classifyStatus(status int, body []byte) *scoreerr.Error {
	if status >= 200 && status < 300 {
		return nil
	}

	retryable := status >= 500 ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests

	detail := string(body)
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return scoreerr.Newf(scoreerr.CodeServer, retryable,
		"scoring endpoint returned %d: %s", status, detail)
}
