package httpapi

import (
	"net/http"
	"strings"

	"gatekey.org/internal/audit"
	"gatekey.org/internal/iam"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.auth.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user":   user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pair,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw, ok := iam.TokenFromContext(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, "missing bearer token", "missing_token")
		return
	}
	claims, err := a.tokens.VerifyAccessToken(r.Context(), raw)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	if err := a.auth.Logout(r.Context(), claims); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id":    claims.Subject,
		"session_id": claims.SessionID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "logged_out",
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := iam.PrincipalFromContext(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, "missing bearer token", "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"roles":       principal.Roles,
		"permissions": principal.PermissionCodes(),
	})
}

func (a *API) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := a.tokens.JWKS(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	issue, err := a.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	// issue.Code is the plaintext reset code. A mailer would pick it up
	// here; without one the code only reaches the user out of band.
	if issue.ResetID != "" {
		_ = audit.LogEvent(r.Context(), "auth.forgot_password", map[string]any{
			"reset_id": issue.ResetID,
		})
	}
	// Same response for known and unknown emails.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "reset_requested",
	})
}

type resetPasswordRequest struct {
	ResetID     string `json:"reset_id"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.ResetID, req.Code, req.NewPassword); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.reset_password", map[string]any{
		"reset_id": req.ResetID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password_reset",
	})
}
