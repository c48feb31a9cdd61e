package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/util"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

const sessionCookie = "sessionId"

type AuthController struct {
	UserRepo engine.UserRepo
}

func NewBaseController(userRepo engine.UserRepo) *AuthController {
	return &AuthController{UserRepo: userRepo}
}

func (ac *AuthController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", ac.handleLogin)
	mux.HandleFunc("POST /api/logout", ac.handleLogout)
}

func (ac *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1) Try session cookie
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			u, err := ac.UserRepo.FindBySessionID(c.Value, time.Now().UTC())
			if err == nil && enabled(u) {
				next(w, r.WithContext(context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)))
				return
			}
		}
		// 2) Try API key from headers
		// Supported headers: X-API-Key: <key>
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			u, err := ac.UserRepo.FindByApiKey(apiKey)
			if err == nil && enabled(u) {
				next(w, r.WithContext(context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)))
				return
			}
		}
		util.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
	}
}

// enabled treats a NULL enabled column as enabled.
func enabled(u *domain.User) bool {
	return u != nil && (!u.Enabled.Valid || u.Enabled.Bool)
}

func (ac *AuthController) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.LoginRequest](r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		util.WriteJSONError(w, http.StatusUnauthorized, "username and password are required")
		return
	}
	u, err := ac.UserRepo.FindByUsername(username)
	if err != nil {
		slog.Error("FindByUsername failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !enabled(u) || !util.CheckPassword(u.Password, req.Password) {
		util.WriteJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	sessionID, err := util.NewSessionID()
	if err != nil {
		slog.Error("rand.Read failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	expiryHours := config.GetSystemSettingInteger(config.WEB_SESSION_EXPIRY_HOURS)
	expires := time.Now().Add(time.Duration(expiryHours) * time.Hour)
	if err := ac.UserRepo.UpdateSession(u.ID, sessionID, expires); err != nil {
		slog.Error("UpdateSession failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	slog.Info("Analyst logged in", "username", u.Username)
	util.WriteJSONResponse(w, http.StatusOK, map[string]string{"username": u.Username})
}

// handleLogout clears the current session; it always succeeds.
func (ac *AuthController) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := ac.UserRepo.ClearSessionBySessionID(c.Value); err != nil {
			slog.Warn("Failed to clear session in DB during logout", "error", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
