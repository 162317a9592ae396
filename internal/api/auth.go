package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	Sessions  *Sessions
	JWTSecret string
	TokenTTL  time.Duration
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string         `json:"token"`
	Identity model.Identity `json:"identity"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login. Unknown accounts are registered.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	sess, id, err := h.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr, "error", err)
		writeError(w, err)
		return
	}

	token, claims, err := auth.GenerateToken(h.JWTSecret, id, time.Now(), h.TokenTTL)
	if err != nil {
		sess.Client.Close()
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	h.Sessions.Add(claims, sess)

	slog.Info("user logged in", "uid", id.UID)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Identity: id})
}

// Logout handles POST /api/auth/logout. The token is revoked and its
// session torn down.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.logout(r, claims); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) logout(r *http.Request, claims *auth.Claims) error {
	now := time.Now()
	expiresAt := now
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt, now); err != nil {
		slog.Error("revoking token", "error", err)
		return err
	}
	h.Sessions.Remove(r.Context(), claims.ID)
	slog.Info("user logged out", "uid", claims.UID)
	return nil
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UID, hash); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("user changed own password", "uid", claims.UID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
