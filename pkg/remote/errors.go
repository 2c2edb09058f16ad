// Package remote wraps the REST API of a workflow platform instance: listing, reading and
// mutating items, with cached reads and classified failures.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// Kind classifies a remote failure by how the caller should react to it.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindRateLimited     Kind = "rate_limited"
	KindServerError     Kind = "server_error"
	KindNetworkTimeout  Kind = "network_timeout"
	KindConnectionReset Kind = "connection_reset"
	KindCanceled        Kind = "canceled"
	KindFatal           Kind = "fatal"
)

// Retryable reports whether a failure of this kind may succeed when repeated.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindNetworkTimeout, KindConnectionReset:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound     = errors.New("item not found")
	ErrConflict     = errors.New("item conflicts with current state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrTimeout      = errors.New("request timed out")
	ErrConnection   = errors.New("connection reset")
)

var kindErrors = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindConflict:        ErrConflict,
	KindUnauthorized:    ErrUnauthorized,
	KindForbidden:       ErrForbidden,
	KindRateLimited:     ErrRateLimited,
	KindServerError:     ErrServer,
	KindNetworkTimeout:  ErrTimeout,
	KindConnectionReset: ErrConnection,
}

// Error is a classified remote failure.
type Error struct {
	Op         string        // Operation being performed (List, Get, Mutate)
	ItemID     string        // Item ID if applicable
	StatusCode int           // HTTP status, zero for transport failures
	Kind       Kind          // Classification
	RetryAfter time.Duration // Server-provided delay hint, zero if absent
	Message    string        // Response body excerpt or transport detail
	Err        error         // Underlying error
}

func (e *Error) Error() string {
	target := ""
	if e.ItemID != "" {
		target = " for item " + e.ItemID
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("%s%s failed with HTTP %d (%s): %s", e.Op, target, e.StatusCode, e.Kind, e.Message)
	}

	return fmt.Sprintf("%s%s failed (%s): %v", e.Op, target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind as well as the wrapped error.
func (e *Error) Is(target error) bool {
	if sentinel, ok := kindErrors[e.Kind]; ok && target == sentinel {
		return true
	}

	return errors.Is(e.Err, target)
}

// KindOf returns the classification of err, KindFatal for unclassified errors.
func KindOf(err error) Kind {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind
	}

	return KindFatal
}

// IsRetryable reports whether err is a transient remote failure.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err).Retryable()
}

// IsNotFound reports whether the remote item no longer exists.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether the remote rejected a write because the desired state already holds.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	kind := KindOf(err)

	return kind == KindUnauthorized || kind == KindForbidden
}

// RetryAfter returns the server's delay hint carried by err, zero if none.
func RetryAfter(err error) time.Duration {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.RetryAfter
	}

	return 0
}

// classifyStatus maps an HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServerError
	default:
		return KindFatal
	}
}

// classifyTransport maps a failed round trip to a failure kind. parent is the caller's
// context: its cancellation is not a timeout of the call itself.
func classifyTransport(parent context.Context, err error) Kind {
	if parent.Err() != nil {
		return KindCanceled
	}

	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetworkTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindNetworkTimeout
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnectionReset
	default:
		return KindFatal
	}
}

// parseRetryAfter reads a Retry-After header given as seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}

		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if delay := at.Sub(now); delay > 0 {
			return delay
		}
	}

	return 0
}
