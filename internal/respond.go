package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"surety-registry-api/internal/logging"
	"surety-registry-api/internal/models"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeMsg writes the {"msg": ...} body every error response uses.
func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

// serverError logs err and answers with the generic 500 body.
func serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context()).Error(op, zap.Error(err))
	writeMsg(w, http.StatusInternalServerError, "Server error")
}

// failedWith logs err and answers 500 with prefix followed by the error text.
func failedWith(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	logging.FromContext(r.Context()).Error(prefix, zap.Error(err))
	writeMsg(w, http.StatusInternalServerError, prefix+err.Error())
}

// decodeJSON reads the body into v. A body that fails validation is reported
// with the field messages.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeMsg(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := models.Validate(v); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"msg": ve.Error(), "errors": ve.Fields})
			return false
		}
		writeMsg(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// decodeObject reads a free-form JSON object, keeping numbers exact.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		writeMsg(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return raw, true
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
