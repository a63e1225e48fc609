package internal

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"surety-registry-api/internal/auth"
	"surety-registry-api/internal/logging"
	"surety-registry-api/internal/models"
	"surety-registry-api/internal/store"
	"surety-registry-api/pkg/datenorm"
	"surety-registry-api/pkg/export"
)

var errLastAdmin = errors.New("cannot remove the last admin")

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := store.GetUserByLogin(r.Context(), s.DB, req.Login)
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		serverError(w, r, "login", err)
		return
	}
	if !user.CheckPassword(req.Password) {
		writeMsg(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.JWTManager.GenerateToken(user.ID, user.Roles())
	if err != nil {
		serverError(w, r, "generate token", err)
		return
	}

	logging.FromContext(r.Context()).Info("user logged in", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// getMe returns the caller's profile
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), s.DB, auth.UserIDFromContext(r.Context()))
	if store.IsNotFound(err) {
		writeMsg(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// updateProfile lets the caller change their name and email
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	set := map[string]any{}
	if req.FullName != nil {
		set["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.EmailID != nil {
		set["emailId"] = strings.ToLower(strings.TrimSpace(*req.EmailID))
	}
	if len(set) == 0 {
		writeMsg(w, http.StatusBadRequest, "No fields to update")
		return
	}

	s.applyUserUpdate(w, r, auth.UserIDFromContext(r.Context()), set, false)
}

// changePassword handles password changes
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
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
		serverError(w, r, "change password", err)
		return
	}
	if !user.CheckPassword(req.CurrentPassword) {
		writeMsg(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		serverError(w, r, "change password", err)
		return
	}
	if err := store.UpdateUser(r.Context(), s.DB, userID, map[string]any{"passwordHash": hash}); err != nil {
		serverError(w, r, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		serverError(w, r, "list users", err)
		return
	}
	sendListResponse(w, models.FilterUsers(users, params.q), params)
}

func (s *Server) exportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		serverError(w, r, "export users", err)
		return
	}
	users = models.FilterUsers(users, parseListParams(r).q)
	sendWorkbook(w, r, "Users", func(w io.Writer) error {
		return export.Users(w, users)
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Village != "" && !s.Config.HasStation(req.Village) {
		writeMsg(w, http.StatusBadRequest, "Unknown court station: "+req.Village)
		return
	}

	user, err := req.ToUser()
	if err != nil {
		serverError(w, r, "create user", err)
		return
	}
	if err := store.InsertUser(r.Context(), s.DB, &user); err != nil {
		if store.IsUniqueViolation(err) {
			writeMsg(w, http.StatusConflict, "A user with this mobile number already exists")
			return
		}
		serverError(w, r, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req models.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	set := map[string]any{}
	if req.FullName != nil {
		set["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.MobileNo != nil {
		set["mobileNo"] = strings.TrimSpace(*req.MobileNo)
	}
	if req.DOB != nil {
		set["dob"] = datenorm.Parse(*req.DOB)
	}
	if req.Village != nil {
		village := strings.TrimSpace(*req.Village)
		if village != "" && !s.Config.HasStation(village) {
			writeMsg(w, http.StatusBadRequest, "Unknown court station: "+village)
			return
		}
		set["village"] = village
	}
	if req.EmailID != nil {
		set["emailId"] = strings.ToLower(strings.TrimSpace(*req.EmailID))
	}
	if req.Role != nil {
		set["role"] = *req.Role
	}
	if req.Password != nil {
		hash, err := models.HashPassword(*req.Password)
		if err != nil {
			serverError(w, r, "update user", err)
			return
		}
		set["passwordHash"] = hash
	}
	if len(set) == 0 {
		writeMsg(w, http.StatusBadRequest, "No fields to update")
		return
	}

	s.applyUserUpdate(w, r, id, set, req.Role != nil && *req.Role != models.RoleAdmin)
}

// applyUserUpdate writes set to one account and answers with the result.
// With demoting set, the last admin account keeps its role.
func (s *Server) applyUserUpdate(w http.ResponseWriter, r *http.Request, id int64, set map[string]any, demoting bool) {
	var updated *models.User
	err := store.WithTx(r.Context(), s.DB, func(tx *sql.Tx) error {
		if demoting {
			if err := guardLastAdmin(r, tx, id); err != nil {
				return err
			}
		}
		if err := store.UpdateUser(r.Context(), tx, id, set); err != nil {
			return err
		}
		var err error
		updated, err = store.GetUser(r.Context(), tx, id)
		return err
	})
	switch {
	case store.IsNotFound(err):
		writeMsg(w, http.StatusNotFound, "User not found")
	case errors.Is(err, errLastAdmin):
		writeMsg(w, http.StatusBadRequest, "Cannot remove the last admin")
	case store.IsUniqueViolation(err):
		writeMsg(w, http.StatusConflict, "A user with this mobile number already exists")
	case err != nil:
		serverError(w, r, "update user", err)
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMsg(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	err := store.WithTx(r.Context(), s.DB, func(tx *sql.Tx) error {
		if err := guardLastAdmin(r, tx, id); err != nil {
			return err
		}
		return store.DeleteUser(r.Context(), tx, id)
	})
	switch {
	case store.IsNotFound(err):
		writeMsg(w, http.StatusNotFound, "User not found")
	case errors.Is(err, errLastAdmin):
		writeMsg(w, http.StatusBadRequest, "Cannot delete the last admin")
	case store.IsForeignKeyViolation(err):
		writeMsg(w, http.StatusConflict, "User still owns sureties or hardware records")
	case err != nil:
		serverError(w, r, "delete user", err)
	default:
		writeMsg(w, http.StatusOK, "User deleted successfully")
	}
}

// guardLastAdmin fails with errLastAdmin when id is the only admin account.
func guardLastAdmin(r *http.Request, tx *sql.Tx, id int64) error {
	user, err := store.GetUser(r.Context(), tx, id)
	if err != nil {
		return err
	}
	if user.Role != models.RoleAdmin {
		return nil
	}
	n, err := store.CountAdmins(r.Context(), tx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return errLastAdmin
	}
	return nil
}
