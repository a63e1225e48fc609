package internal

import (
	"io"
	"net/http"

	"surety-registry-api/internal/auth"
	"surety-registry-api/internal/models"
	"surety-registry-api/internal/store"
	"surety-registry-api/pkg/export"
)

// createSurety files a surety for the caller. A caller with a home village
// always files under that police station.
func (s *Server) createSurety(w http.ResponseWriter, r *http.Request) {
	var req models.SuretyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	user, err := store.GetUser(r.Context(), s.DB, userID)
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(w, r, "create surety", err)
		return
	}

	surety := req.ToSurety(userID)
	if user.Village != "" && user.Role != models.RoleAdmin {
		surety.PoliceStation = user.Village
	} else if surety.PoliceStation != "" && !s.Config.HasStation(surety.PoliceStation) {
		writeMsg(w, http.StatusBadRequest, "Unknown police station: "+surety.PoliceStation)
		return
	}

	if err := store.InsertSurety(r.Context(), s.DB, &surety); err != nil {
		if store.IsUniqueViolation(err) {
			writeMsg(w, http.StatusConflict, "Surety already exists")
			return
		}
		failedWith(w, r, "Server Error on Create: ", err)
		return
	}
	writeJSON(w, http.StatusCreated, surety)
}

// listMySureties returns the caller's sureties, filtered by the query string.
func (s *Server) listMySureties(w http.ResponseWriter, r *http.Request) {
	s.sendSureties(w, r, auth.UserIDFromContext(r.Context()))
}

// listAllSureties returns every surety, filtered by the query string.
func (s *Server) listAllSureties(w http.ResponseWriter, r *http.Request) {
	s.sendSureties(w, r, 0)
}

func (s *Server) sendSureties(w http.ResponseWriter, r *http.Request, ownerID int64) {
	list, err := s.filteredSureties(r, ownerID)
	if err != nil {
		serverError(w, r, "list sureties", err)
		return
	}
	sendListResponse(w, list, parseListParams(r))
}

func (s *Server) filteredSureties(r *http.Request, ownerID int64) ([]models.Surety, error) {
	list, err := store.ListSureties(r.Context(), s.DB, ownerID)
	if err != nil {
		return nil, err
	}
	return models.FilterSureties(list, models.ParseSuretyFilter(r.URL.Query().Get)), nil
}

func (s *Server) exportMySureties(w http.ResponseWriter, r *http.Request) {
	s.exportSureties(w, r, auth.UserIDFromContext(r.Context()))
}

func (s *Server) exportAllSureties(w http.ResponseWriter, r *http.Request) {
	s.exportSureties(w, r, 0)
}

func (s *Server) exportSureties(w http.ResponseWriter, r *http.Request, ownerID int64) {
	list, err := s.filteredSureties(r, ownerID)
	if err != nil {
		serverError(w, r, "export sureties", err)
		return
	}
	sendWorkbook(w, r, "Surety_List", func(w io.Writer) error {
		return export.Sureties(w, list)
	})
}

// updateSurety replaces every editable field. The creator is kept.
func (s *Server) updateSurety(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid surety ID")
		return
	}
	var req models.SuretyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	surety := req.ToSurety(0)
	surety.ID = id
	if surety.PoliceStation != "" && !s.Config.HasStation(surety.PoliceStation) {
		writeMsg(w, http.StatusBadRequest, "Unknown police station: "+surety.PoliceStation)
		return
	}

	err := store.UpdateSurety(r.Context(), s.DB, &surety)
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "Surety not found")
		return
	}
	if err != nil {
		failedWith(w, r, "Server Error on Update: ", err)
		return
	}
	writeJSON(w, http.StatusOK, surety)
}

func (s *Server) deleteSurety(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid surety ID")
		return
	}
	err := store.DeleteSurety(r.Context(), s.DB, id)
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "Surety not found")
		return
	}
	if err != nil {
		failedWith(w, r, "Server Error on Delete: ", err)
		return
	}
	writeMsg(w, http.StatusOK, "Surety deleted successfully")
}
