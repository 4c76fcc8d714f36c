package httpapi

import (
	"net/http"
	"strings"

	"papyrus.org/internal/auth"
)

type createInviteRequest struct {
	Code  string `json:"code"`
	AddTo string `json:"add_to"`
}

func (a *API) handleInvitesCollection(w http.ResponseWriter, r *http.Request, requester auth.User) {
	switch r.Method {
	case http.MethodGet:
		invites, err := a.svc.ReadInvites(r.Context(), requester)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeResponse(w, http.StatusOK, invites)
	case http.MethodPost:
		var req createInviteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		invite, err := a.svc.CreateInvite(r.Context(), requester, req.Code, req.AddTo)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "invite.create", map[string]any{"add_to": invite.AddTo})
		writeResponse(w, http.StatusCreated, invite)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleInviteResource serves /invites/{code}. Reads go through the same
// visibility scoping as deletes: a code the requester can't see is a 401,
// not a 404.
func (a *API) handleInviteResource(w http.ResponseWriter, r *http.Request, requester auth.User) {
	code := strings.TrimPrefix(r.URL.Path, "/invites/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		visible, err := a.svc.ReadInvites(r.Context(), requester)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		for _, inv := range visible {
			if inv.Code == code {
				writeResponse(w, http.StatusOK, inv)
				return
			}
		}
		writeError(w, r, http.StatusUnauthorized, "can't read this invite code")
	case http.MethodDelete:
		if err := a.svc.DeleteInvite(r.Context(), requester, code); err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "invite.delete", nil)
		writeResponse(w, http.StatusOK, "invite code deleted")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
