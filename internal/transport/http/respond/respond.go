// Package respond writes JSON bodies and maps service errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/go-chi/chi/v5"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidTransition: http.StatusConflict,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindAlreadyPaid:       http.StatusConflict,
	apperr.KindNoBillableOrders:  http.StatusUnprocessableEntity,
	apperr.KindInvalidArgument:   http.StatusBadRequest,
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if status, ok := statusByKind[apperr.KindOf(err)]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error writes err as an ErrorBody. Untagged errors are reported as internal.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.InfoContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	JSON(w, status, ErrorBody{Kind: apperr.KindOf(err), Message: apperr.MessageOf(err)})
}

// BadRequest reports a malformed request.
func BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, apperr.Wrap(apperr.KindInvalidArgument, err, "%s", err.Error()))
}

var errBadID = errors.New("path id must be a positive integer")

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Wrap(apperr.KindInvalidArgument, errBadID, "invalid %s %q", name, chi.URLParam(r, name))
	}

	return id, nil
}
