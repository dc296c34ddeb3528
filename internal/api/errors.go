package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alecgard/orgbook/internal/validate"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// validationEnvelope carries per-field messages for 422 responses.
type validationEnvelope struct {
	Errors map[string]string `json:"errors"`
}

// successEnvelope wraps every successful response.
type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, status, message string) {
	writeJSON(w, statusCode, errorEnvelope{
		Status:     status,
		Message:    message,
		StatusCode: statusCode,
	})
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, successEnvelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeValidation(w http.ResponseWriter, verr *validate.Error) {
	writeJSON(w, http.StatusUnprocessableEntity, validationEnvelope{Errors: verr.Fields})
}

func writeBadBody(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "Bad request", "Request body must be a JSON object")
}

// writeInternal logs err and writes a generic 500; the cause never reaches
// the client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "error", "Internal server error")
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit. An empty
// body decodes to the zero value so that field validation reports what is
// missing.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	err := json.NewDecoder(lr).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
