package httpapi

import (
	"net/http"
	"strings"

	"papyrus.org/internal/audit"
	"papyrus.org/internal/auth"
)

type createUserRequest struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"user_name"`
	MemberOf string `json:"member_of"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.guarded(a.organizer, a.createUser)(w, r)
	case http.MethodGet:
		a.guarded(a.admin, a.listUsers)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// createUser registers an account at the base level of access; promotion is
// a separate step.
func (a *API) createUser(w http.ResponseWriter, r *http.Request, requester auth.User) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), auth.NewUser{
		UserID:   req.UserID,
		Email:    req.Email,
		Password: req.Password,
		UserName: req.UserName,
		MemberOf: req.MemberOf,
		Level:    auth.LevelMember,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "user.create", map[string]any{"user_id": user.UserID})
	writeResponse(w, http.StatusCreated, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, requester auth.User) {
	users, err := a.svc.ReadUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, users)
}

func (a *API) handleUserRead(w http.ResponseWriter, r *http.Request, requester auth.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/usrs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	user, err := a.svc.ReadUser(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, user)
}

// handleUserResource dispatches /usr/{id} and /usr/{id}/{op}. Field edits
// need the organizer level; promote, demote and delete only need trusted,
// with the not-superior rule enforced underneath in every case.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/usr/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, op, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(op, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch op {
	case "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.guarded(a.trusted, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.deleteUser(w, r, requester, id)
		})(w, r)
	case "promote", "demote":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.guarded(a.trusted, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.changeLevel(w, r, requester, id, op)
		})(w, r)
	case "user_id", "user_name", "email", "password":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.guarded(a.organizer, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.patchUser(w, r, requester, id, op)
		})(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, requester auth.User, id string) {
	if err := a.svc.DeleteUser(r.Context(), requester, id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "user.delete", map[string]any{"user_id": id})
	writeResponse(w, http.StatusOK, "user deleted")
}

func (a *API) changeLevel(w http.ResponseWriter, r *http.Request, requester auth.User, id, op string) {
	var (
		user *auth.User
		err  error
	)
	if op == "promote" {
		user, err = a.svc.Promote(r.Context(), requester, id)
	} else {
		user, err = a.svc.Demote(r.Context(), requester, id)
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "user."+op, map[string]any{
		"user_id":         id,
		"level_of_access": user.LevelOfAccess,
	})
	writeResponse(w, http.StatusOK, user)
}

type patchUserRequest struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *API) patchUser(w http.ResponseWriter, r *http.Request, requester auth.User, id, field string) {
	var req patchUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if field == "password" {
		if err := a.svc.UpdateUserPassword(r.Context(), requester, id, req.OldPassword, req.NewPassword); err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "user.password.update", map[string]any{"user_id": id})
		writeResponse(w, http.StatusOK, "password updated")
		return
	}

	var upd auth.UserUpdate
	switch field {
	case "user_id":
		upd.UserID = &req.UserID
	case "user_name":
		upd.UserName = &req.UserName
	case "email":
		upd.Email = &req.Email
	}
	user, err := a.svc.UpdateUser(r.Context(), requester, id, upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "user."+field+".update", map[string]any{"user_id": id})
	writeResponse(w, http.StatusOK, user)
}

func (a *API) auditEvent(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}
