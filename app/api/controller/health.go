package controller

import (
	"net/http"
)

// HandleHealth reports the cache store and every network's RPC endpoints.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Cache.Health(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "cache store connection error"})
		return
	}

	networks := map[string]string{}
	healthy := true
	for name, err := range c.App.Networks.Health(ctx) {
		if err != nil {
			networks[name] = err.Error()
			healthy = false
			continue
		}
		networks[name] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "networks": networks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "networks": networks})
}
