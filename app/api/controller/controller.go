package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/ragetrade/vaultmetrics/app/api/types"
	"github.com/ragetrade/vaultmetrics/pkg/utils"
	"go.uber.org/zap"
)

type Controller struct {
	App        *types.App
	AdminToken string
	// Users maps usernames to bcrypt password hashes.
	Users     map[string][]byte
	JWTSecret []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminUsersJSON := utils.Env("ADMIN_USERS", "")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	users := map[string][]byte{}
	if phash, err := utils.HashOrRead(adminPass); err == nil {
		users[adminUser] = phash
	} else {
		app.Logger.Error("Unable to hash admin password, password login disabled", zap.Error(err))
	}
	if adminUsersJSON != "" {
		// username -> bcrypt hash
		extra := map[string]string{}
		if err := json.Unmarshal([]byte(adminUsersJSON), &extra); err != nil {
			app.Logger.Warn("Ignoring malformed ADMIN_USERS", zap.Error(err))
		}
		for name, hash := range extra {
			users[name] = []byte(hash)
		}
	}

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		Users:      users,
		JWTSecret:  jwtSecret,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo the origin so the admin session cookie can be sent cross-origin.
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// Global vault metrics
	r.HandleFunc("/data/aggregated/get-total-shares", c.HandleTotalShares).Methods(http.MethodGet)
	r.HandleFunc("/data/aggregated/get-aave-lends", c.HandleAaveLends).Methods(http.MethodGet)
	r.HandleFunc("/data/aggregated/get-market-movement", c.HandleMarketMovement).Methods(http.MethodGet)

	// Per-user metrics
	r.HandleFunc("/data/aggregated/user/get-shares", c.HandleUserShares).Methods(http.MethodGet)
	r.HandleFunc("/data/aggregated/user/get-aave-lends", c.HandleUserAaveLends).Methods(http.MethodGet)

	r.HandleFunc("/data/get-block-by-timestamp", c.HandleBlockByTimestamp).Methods(http.MethodGet)

	// Admin
	r.HandleFunc("/admin/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/admin/logout", c.HandleAdminLogout).Methods(http.MethodPost)
	r.Handle("/admin/flush-all", c.RequireAuth(http.HandlerFunc(c.HandleFlushAll))).Methods(http.MethodPost)
	r.Handle("/admin/cache/stats", c.RequireAuth(http.HandlerFunc(c.HandleCacheStats))).Methods(http.MethodGet)

	return r, nil
}
