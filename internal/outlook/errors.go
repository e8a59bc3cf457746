package outlook

import (
	"errors"
	"fmt"

	"github.com/teemow/inboxreader/internal/auth"
)

var (
	// ErrNotAuthenticated is returned when no credential has been set.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrTokenInvalid is returned on a 401 from Graph.
	ErrTokenInvalid = auth.ErrTokenInvalid

	// ErrNetwork wraps transport failures and timeouts.
	ErrNetwork = auth.ErrNetwork

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")
)

// APIError is a non-200, non-401 response from Graph
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph %s: status %d: %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph %s: status %d", e.Op, e.StatusCode)
}
