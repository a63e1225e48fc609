package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"surety-registry-api/internal/auth"
	"surety-registry-api/internal/logging"
	"surety-registry-api/pkg/importer"
)

// Import outcomes reported to an ImportRecorder.
const (
	ResultCommitted = "committed"
	ResultEmpty     = "empty"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
	ResultDryRun    = "dry_run"
)

// ImportRecorder receives the outcome of every import request.
type ImportRecorder interface {
	ObserveImport(kind, result string, submitted, skipped int)
}

// ImportsHandler serves the JSON and spreadsheet import endpoints.
type ImportsHandler struct {
	Importer *importer.Importer
	Mapping  *importer.MappingConfig
	MaxBytes int64
	Recorder ImportRecorder
}

// NewImportsHandler creates a handler that imports into db using mapping for
// spreadsheet headers.
func NewImportsHandler(db *sql.DB, mapping *importer.MappingConfig, maxBytes int64) *ImportsHandler {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &ImportsHandler{
		Importer: importer.New(db),
		Mapping:  mapping,
		MaxBytes: maxBytes,
	}
}

var nouns = map[string]string{
	importer.KindHardware: "hardware",
	importer.KindSureties: "surety",
	importer.KindUsers:    "user",
}

// ImportHardwareJSON accepts a bare JSON array of hardware records.
func (h *ImportsHandler) ImportHardwareJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	var body any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "Invalid JSON body: " + err.Error()})
		return
	}

	list, _ := body.([]any)
	records := make([]map[string]any, 0, len(list))
	for _, el := range list {
		m, _ := el.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		records = append(records, m)
	}

	summary, err := h.Importer.ImportHardware(r.Context(), records, auth.UserIDFromContext(r.Context()))
	h.respond(w, r, importer.KindHardware, summary, err)
}

// ImportHardwareExcel imports hardware rows from an uploaded .xlsx file.
// Consecutive rows describing the same delivery become one record.
func (h *ImportsHandler) ImportHardwareExcel(w http.ResponseWriter, r *http.Request) {
	h.importExcel(w, r, importer.KindHardware, func(t *importer.Table, userID int64, opts importer.Options) (*importer.Summary, error) {
		return h.Importer.ImportHardwareWithOptions(r.Context(), t.Records, userID, opts)
	})
}

// ImportSuretiesExcel imports sureties from an uploaded .xlsx file.
func (h *ImportsHandler) ImportSuretiesExcel(w http.ResponseWriter, r *http.Request) {
	h.importExcel(w, r, importer.KindSureties, func(t *importer.Table, userID int64, opts importer.Options) (*importer.Summary, error) {
		return h.Importer.ImportSureties(r.Context(), t.Records, userID, opts)
	})
}

// ImportUsersExcel imports user accounts from an uploaded .xlsx file.
func (h *ImportsHandler) ImportUsersExcel(w http.ResponseWriter, r *http.Request) {
	h.importExcel(w, r, importer.KindUsers, func(t *importer.Table, userID int64, opts importer.Options) (*importer.Summary, error) {
		return h.Importer.ImportUsers(r.Context(), t.Records, userID, opts)
	})
}

type importFunc func(t *importer.Table, userID int64, opts importer.Options) (*importer.Summary, error)

func (h *ImportsHandler) importExcel(w http.ResponseWriter, r *http.Request, kind string, run importFunc) {
	data, dryRun, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	table, err := importer.ReadWorkbook(data, kind, h.Mapping)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": err.Error()})
		return
	}

	summary, err := run(table, auth.UserIDFromContext(r.Context()), importer.Options{
		DryRun:     dryRun,
		RowNumbers: table.Rows,
	})
	h.respond(w, r, kind, summary, err)
}

// readUpload validates the multipart request and returns the uploaded file.
func (h *ImportsHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "content-type must be multipart/form-data"})
		return nil, false, false
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "invalid multipart form: " + err.Error()})
		return nil, false, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "file is required: " + err.Error()})
		return nil, false, false
	}
	defer file.Close()

	if !isXLSX(header) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "only .xlsx files are accepted"})
		return nil, false, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "failed to read upload: " + err.Error()})
		return nil, false, false
	}
	return data, r.FormValue("dry_run") == "true", true
}

func (h *ImportsHandler) respond(w http.ResponseWriter, r *http.Request, kind string, summary *importer.Summary, err error) {
	noun := nouns[kind]

	switch {
	case errors.Is(err, importer.ErrEmptyPayload):
		h.observe(kind, ResultRejected, nil)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"msg": fmt.Sprintf("Import payload must be a non-empty array of %s records.", noun),
		})
	case errors.Is(err, importer.ErrUserNotFound):
		h.observe(kind, ResultRejected, nil)
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": "User not found"})
	case err != nil:
		h.observe(kind, ResultFailed, nil)
		logging.FromContext(r.Context()).Error("batch import failed", zap.String("kind", kind), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"msg":   "Server failed to process the batch. A data error may exist in the file. Error: " + err.Error(),
			"error": err.Error(),
			"count": 0,
		})
	case summary.DryRun:
		h.observe(kind, ResultDryRun, summary)
		writeJSON(w, http.StatusOK, map[string]any{
			"msg":     fmt.Sprintf("Dry run: %d %s records would be imported.", summary.Submitted, noun),
			"count":   summary.Submitted,
			"skipped": summary.Skipped,
			"skips":   summary.Skips,
			"dryRun":  true,
		})
	case summary.Submitted == 0:
		h.observe(kind, ResultEmpty, summary)
		writeJSON(w, http.StatusOK, map[string]any{
			"msg":     "File processed, but no valid records were inserted after filtering.",
			"count":   0,
			"skipped": summary.Skipped,
			"skips":   summary.Skips,
		})
	default:
		h.observe(kind, ResultCommitted, summary)
		writeJSON(w, http.StatusCreated, map[string]any{
			"msg":     fmt.Sprintf("Successfully imported %d %s records.", summary.Submitted, noun),
			"count":   summary.Submitted,
			"skipped": summary.Skipped,
			"skips":   summary.Skips,
		})
	}
}

func (h *ImportsHandler) observe(kind, result string, s *importer.Summary) {
	if h.Recorder == nil {
		return
	}
	var submitted, skipped int
	if s != nil {
		submitted, skipped = s.Submitted, s.Skipped
	}
	h.Recorder.ObserveImport(kind, result, submitted, skipped)
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
