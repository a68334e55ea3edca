package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HandleAdminLogin checks username/password and issues a session cookie.
func (c *Controller) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	hash, ok := c.Users[in.Username]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(in.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if err := c.IssueSession(w, in.Username); err != nil {
		c.App.Logger.Error("Unable to sign session", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleAdminLogout clears the session cookie.
func (c *Controller) HandleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleFlushAll clears every cached entry.
func (c *Controller) HandleFlushAll(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Cache.Flush(r.Context()); err != nil {
		c.App.Logger.Error("Cache flush failed", zap.Error(err))
		writeEnvelope(w, &cache.Envelope{Error: err.Error(), Status: http.StatusInternalServerError})
		return
	}
	writeEnvelope(w, &cache.Envelope{})
}

func (c *Controller) HandleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Cache.Stats())
}
