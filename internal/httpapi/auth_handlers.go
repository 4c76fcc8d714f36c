package httpapi

import (
	"net/http"
	"strings"

	"papyrus.org/internal/audit"
	"papyrus.org/internal/auth"
)

type signinRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Device     string `json:"device"`
	Location   string `json:"location"`
}

type signupRequest struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	UserName       string `json:"user_name"`
	InvitationCode string `json:"invitation_code"`
	Device         string `json:"device"`
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	device := strings.TrimSpace(req.Device)
	if device == "" {
		device = r.UserAgent()
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = clientIP(r)
	}
	token, err := a.svc.Signin(r.Context(), req.Identifier, req.Password, device, location)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{
		"identifier": req.Identifier,
		"device":     device,
	})
	writeResponse(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	device := strings.TrimSpace(req.Device)
	if device == "" {
		device = r.UserAgent()
	}
	token, err := a.svc.SignupUser(r.Context(), auth.Signup{
		UserID:         req.UserID,
		Email:          req.Email,
		Password:       req.Password,
		UserName:       req.UserName,
		InvitationCode: req.InvitationCode,
	}, device, clientIP(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": req.UserID,
	})
	writeResponse(w, http.StatusCreated, map[string]string{"token": token})
}

func (a *API) handleSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, user, err := a.session.VerifyWithToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if err := a.svc.Signout(r.Context(), token.TokenID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithRequester(r.Context(), user), "auth.signout", nil)
	writeResponse(w, http.StatusOK, "signed out")
}

func (a *API) handleSignoutEverywhere(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, user, err := a.session.VerifyWithToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if err := a.svc.SignoutEverywhere(r.Context(), user.UserID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithRequester(r.Context(), user), "auth.signout_everywhere", nil)
	writeResponse(w, http.StatusOK, "signed out everywhere")
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request, requester auth.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeResponse(w, http.StatusOK, requester)
}

func (a *API) handleTokens(w http.ResponseWriter, r *http.Request, requester auth.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tokens, err := a.svc.Tokens(r.Context(), requester.UserID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, tokens)
}

type deleteTokenRequest struct {
	Token string `json:"token"`
}

func (a *API) handleToken(w http.ResponseWriter, r *http.Request, requester auth.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	var req deleteTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	if err := a.svc.DeleteToken(r.Context(), requester, req.Token); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.token.delete", nil)
	writeResponse(w, http.StatusOK, "token deleted")
}
