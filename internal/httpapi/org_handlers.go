package httpapi

import (
	"net/http"
	"strings"

	"papyrus.org/internal/auth"
)

type createOrgRequest struct {
	OrgID string `json:"organisation_id"`
	Name  string `json:"organisation_name"`
}

func (a *API) handleOrgsCollection(w http.ResponseWriter, r *http.Request, requester auth.User) {
	switch r.Method {
	case http.MethodGet:
		orgs, err := a.svc.ReadOrgs(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeResponse(w, http.StatusOK, orgs)
	case http.MethodPost:
		var req createOrgRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.svc.CreateOrg(r.Context(), req.OrgID, req.Name)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "org.create", map[string]any{"organisation_id": org.OrgID})
		writeResponse(w, http.StatusCreated, org)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleOrgResource dispatches /orgs/{id}, /orgs/{id}/{op} and
// /orgs/{id}/usrs/{uid}. Field edits need the organizer level, everything
// else the top one.
func (a *API) handleOrgResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/orgs/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case rest == "":
		a.guarded(a.admin, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.orgByID(w, r, id)
		})(w, r)
	case rest == "org_id" || rest == "name":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.guarded(a.organizer, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.patchOrg(w, r, id, rest)
		})(w, r)
	case rest == "usrs":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.guarded(a.admin, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.createOrgMember(w, r, id)
		})(w, r)
	case strings.HasPrefix(rest, "usrs/"):
		uid := strings.TrimPrefix(rest, "usrs/")
		if uid == "" || strings.Contains(uid, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.guarded(a.admin, func(w http.ResponseWriter, r *http.Request, requester auth.User) {
			a.moveOrgMember(w, r, requester, id, uid)
		})(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) orgByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		view, err := a.svc.ReadOrg(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeResponse(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := a.svc.DeleteOrg(r.Context(), id); err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "org.delete", map[string]any{"organisation_id": id})
		writeResponse(w, http.StatusOK, "organisation deleted")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

type patchOrgRequest struct {
	OrgID string `json:"organisation_id"`
	Name  string `json:"organisation_name"`
}

func (a *API) patchOrg(w http.ResponseWriter, r *http.Request, id, field string) {
	var req patchOrgRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var upd auth.OrgUpdate
	if field == "org_id" {
		upd.OrgID = &req.OrgID
	} else {
		upd.Name = &req.Name
	}
	org, err := a.svc.UpdateOrg(r.Context(), id, upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "org."+field+".update", map[string]any{"organisation_id": id})
	writeResponse(w, http.StatusOK, org)
}

type createMemberRequest struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"user_name"`
}

// createOrgMember provisions a user directly inside the organisation at the
// trusted level.
func (a *API) createOrgMember(w http.ResponseWriter, r *http.Request, orgID string) {
	var req createMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), auth.NewUser{
		UserID:   req.UserID,
		Email:    req.Email,
		Password: req.Password,
		UserName: req.UserName,
		MemberOf: orgID,
		Level:    auth.LevelTrusted,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "org.member.create", map[string]any{
		"organisation_id": orgID,
		"user_id":         user.UserID,
	})
	writeResponse(w, http.StatusCreated, user)
}

func (a *API) moveOrgMember(w http.ResponseWriter, r *http.Request, requester auth.User, orgID, userID string) {
	switch r.Method {
	case http.MethodPost:
		user, err := a.svc.AddUserToOrg(r.Context(), requester, orgID, userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "org.member.add", map[string]any{
			"organisation_id": orgID,
			"user_id":         userID,
		})
		writeResponse(w, http.StatusOK, user)
	case http.MethodDelete:
		user, err := a.svc.RemoveUserFromOrg(r.Context(), requester, orgID, userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "org.member.remove", map[string]any{
			"organisation_id": orgID,
			"user_id":         userID,
		})
		writeResponse(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}
