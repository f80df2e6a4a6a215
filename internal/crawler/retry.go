package crawler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// timeoutPatterns mark navigation error messages that warrant advancing to
// the next proxy.
var timeoutPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"net::err_timed_out",
	"net::err_connection_reset",
	"net::err_proxy_connection_failed",
}

// retryable classifies one navigation outcome. HTTP 403 and 429, and
// timeout/deadline-pattern failures, advance the proxy rotation; anything
// else is terminal for the request.
func retryable(status int, err error) bool {
	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		return true
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range timeoutPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
