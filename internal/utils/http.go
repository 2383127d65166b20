package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 1 << 20

// JSON writes a JSON response with status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSONError writes {"error": "..."} with a given status.
func JSONError(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// Message writes {"message": "..."}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// DecodeJSON parses the JSON body into v and handles invalid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		JSONError(w, http.StatusBadRequest, "empty request body")
		return io.EOF
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			JSONError(w, http.StatusBadRequest, "empty request body")
			return err
		}
		JSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return err
	}

	return nil
}

// StatusOf maps an error kind onto an HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the status and client-safe message for err.
// Internal failures are logged with the request id; their cause never
// reaches the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), logger).Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	JSONError(w, status, apperr.MessageOf(err))
}
