package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEnvelope answers with env: 200 on success, otherwise the envelope's status or 500.
func writeEnvelope(w http.ResponseWriter, env *cache.Envelope) {
	status := http.StatusOK
	if env.Failed() {
		status = env.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, env)
}

// writeError answers with an uncached failure envelope for err.
func writeError(w http.ResponseWriter, err error) {
	status, ok := fault.StatusOf(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	writeEnvelope(w, &cache.Envelope{Error: err.Error(), Status: status})
}
