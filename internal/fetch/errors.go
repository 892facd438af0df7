package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every fetch failure.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrRateLimited matches failures caused by HTTP 429.
	ErrRateLimited = errors.New("rate limit exceeded, try again later")
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindHTTP      Kind = "http"
	KindRateLimit Kind = "rate_limit"
	KindDecode    Kind = "decode"
)

// Error describes a failed fetch. It matches ErrFetchFailed, and also
// ErrRateLimited when Kind is KindRateLimit.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	// Body holds the start of a non-2xx response body, if any.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimit:
		return fmt.Sprintf("fetch %s: %v", e.URL, ErrRateLimited)
	case KindHTTP:
		if e.Body != "" {
			return fmt.Sprintf("fetch %s: http %d: %s", e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrFetchFailed:
		return true
	case ErrRateLimited:
		return e.Kind == KindRateLimit
	}
	return false
}

// Status converts a fetch error into the short message shown on a widget.
func Status(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "API rate limit reached"
	default:
		return "Failed to fetch data"
	}
}
