package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/llm"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

// HTTPError lets an error choose its own status code. Errors that do
// not implement it go through the typed-predicate table below.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps service errors onto HTTP statuses. Unknown
// errors are a 500; the client did nothing wrong and retrying will
// not help.
func statusForError(err error) int {
	var he HTTPError
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsTooBusy(err) || llm.IsBusy(err):
		return http.StatusTooManyRequests
	case manager.IsUnavailable(err) || backend.IsNoEngine(err) || backend.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case llm.IsEncoding(err):
		return http.StatusBadRequest
	case llm.IsReleased(err):
		return http.StatusConflict
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: code})
}
