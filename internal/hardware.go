package internal

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"surety-registry-api/internal/auth"
	"surety-registry-api/internal/models"
	"surety-registry-api/internal/store"
	"surety-registry-api/pkg/export"
	"surety-registry-api/pkg/importer"
)

func (s *Server) createHardware(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeObject(w, r)
	if !ok {
		return
	}

	rec, err := importer.ShapeHardware(raw, auth.UserIDFromContext(r.Context()))
	if errors.Is(err, importer.ErrNoLineItems) {
		writeMsg(w, http.StatusBadRequest, "At least one hardware item is required.")
		return
	}
	if err == nil {
		err = store.WithTx(r.Context(), s.DB, func(tx *sql.Tx) error {
			return store.InsertHardware(r.Context(), tx, &rec)
		})
	}
	if err != nil {
		writeMsg(w, http.StatusInternalServerError, "Server Error on Create: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// listHardware returns every record flattened to one row per item.
func (s *Server) listHardware(w http.ResponseWriter, r *http.Request) {
	s.sendHardwareRows(w, r, 0)
}

// listMyHardware returns the caller's own records, flattened.
func (s *Server) listMyHardware(w http.ResponseWriter, r *http.Request) {
	s.sendHardwareRows(w, r, auth.UserIDFromContext(r.Context()))
}

func (s *Server) sendHardwareRows(w http.ResponseWriter, r *http.Request, ownerID int64) {
	rows, err := s.hardwareRows(r, ownerID)
	if err != nil {
		serverError(w, r, "list hardware", err)
		return
	}
	sendListResponse(w, rows, parseListParams(r))
}

func (s *Server) hardwareRows(r *http.Request, ownerID int64) ([]models.HardwareRow, error) {
	records, err := store.ListHardware(r.Context(), s.DB, ownerID)
	if err != nil {
		return nil, err
	}
	return filterHardwareRows(models.Flatten(records), parseListParams(r).q), nil
}

// filterHardwareRows keeps rows whose item name, serial number, court or
// company contains q, ignoring case.
func filterHardwareRows(rows []models.HardwareRow, q string) []models.HardwareRow {
	q = strings.ToLower(q)
	if q == "" {
		return rows
	}
	out := make([]models.HardwareRow, 0, len(rows))
	for _, row := range rows {
		for _, field := range []string{row.HardwareName, row.SerialNumber, row.CourtName, row.CompanyName, row.EmployeeAllocated} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// exportHardware streams the flattened list as a workbook. mine=true limits
// it to the caller's records.
func (s *Server) exportHardware(w http.ResponseWriter, r *http.Request) {
	var ownerID int64
	if r.URL.Query().Get("mine") == "true" {
		ownerID = auth.UserIDFromContext(r.Context())
	}
	rows, err := s.hardwareRows(r, ownerID)
	if err != nil {
		serverError(w, r, "export hardware", err)
		return
	}
	sendWorkbook(w, r, "Hardware_List", func(w io.Writer) error {
		return export.Hardware(w, rows)
	})
}

// updateHardware merges the header fields of the body into the record and
// patches the item addressed by hardwareItems[0]._id, in one transaction.
func (s *Server) updateHardware(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid hardware record ID")
		return
	}
	raw, ok := decodeObject(w, r)
	if !ok {
		return
	}

	var first map[string]any
	if items, _ := raw["hardwareItems"].([]any); len(items) > 0 {
		first, _ = items[0].(map[string]any)
	}
	itemRef, patch, err := importer.ShapeLineItemPatch(first)
	if err != nil {
		failedWith(w, r, "Server Error on Update: ", err)
		return
	}
	if itemRef == "" {
		writeMsg(w, http.StatusBadRequest, "Item ID (_id) and update data are required.")
		return
	}
	itemID, err := uuid.Parse(itemRef)
	if err != nil {
		writeMsg(w, http.StatusNotFound, "Hardware item (subdocument) not found within the record.")
		return
	}

	set, extras, err := importer.ShapeHardwarePatch(raw)
	if err != nil {
		failedWith(w, r, "Server Error on Update: ", err)
		return
	}

	var updated *models.HardwareRecord
	err = store.WithTx(r.Context(), s.DB, func(tx *sql.Tx) error {
		if err := store.UpdateHardware(r.Context(), tx, id, set, extras); err != nil {
			return err
		}
		if err := store.UpdateLineItem(r.Context(), tx, id, itemID, patch); err != nil {
			return err
		}
		updated, err = store.GetHardware(r.Context(), tx, id)
		return err
	})
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "Hardware item (subdocument) not found within the record.")
		return
	}
	if err != nil {
		failedWith(w, r, "Server Error on Update: ", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"msg":      "Hardware item and metadata updated successfully",
		"hardware": updated,
	})
}

// deleteHardwareItem removes one item. The record stays, even when it is
// left without items.
func (s *Server) deleteHardwareItem(w http.ResponseWriter, r *http.Request) {
	parentID, ok := pathID(r, "parentId")
	if !ok {
		writeMsg(w, http.StatusNotFound, "Parent hardware record not found.")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		writeMsg(w, http.StatusBadRequest, "Invalid hardware item ID")
		return
	}

	var updated *models.HardwareRecord
	err = store.WithTx(r.Context(), s.DB, func(tx *sql.Tx) error {
		if err := store.DeleteLineItem(r.Context(), tx, parentID, itemID); err != nil {
			return err
		}
		updated, err = store.GetHardware(r.Context(), tx, parentID)
		return err
	})
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "Parent hardware record not found.")
		return
	}
	if err != nil {
		failedWith(w, r, "Server Error on Delete: ", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"msg":      "Hardware item deleted successfully",
		"hardware": updated,
	})
}

// deleteHardware removes a record with all of its items.
func (s *Server) deleteHardware(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid hardware record ID")
		return
	}
	err := store.DeleteHardware(r.Context(), s.DB, id)
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "Hardware record not found.")
		return
	}
	if err != nil {
		failedWith(w, r, "Server Error on Delete: ", err)
		return
	}
	writeMsg(w, http.StatusOK, "Hardware record deleted successfully")
}
