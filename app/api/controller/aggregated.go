package controller

import (
	"net/http"
)

func (c *Controller) HandleTotalShares(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.TotalShares(r.Context(), p.network, p.excludeRawData))
}

func (c *Controller) HandleAaveLends(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.AaveLends(r.Context(), p.network, p.excludeRawData))
}

func (c *Controller) HandleMarketMovement(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.MarketMovement(r.Context(), p.network, p.excludeRawData))
}

func (c *Controller) HandleUserShares(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, needUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.UserShares(r.Context(), p.network, p.user, p.excludeRawData))
}

func (c *Controller) HandleUserAaveLends(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, needUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.UserAaveLends(r.Context(), p.network, p.user, p.excludeRawData))
}

// HandleBlockByTimestamp ignores excludeRawData: the result has no raw samples.
func (c *Controller) HandleBlockByTimestamp(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, needTimestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, c.App.Metrics.BlockByTimestamp(r.Context(), p.network, p.timestamp))
}
