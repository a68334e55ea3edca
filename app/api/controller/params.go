package controller

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
)

type params struct {
	network        string
	user           common.Address
	excludeRawData bool
	timestamp      int64
}

type paramSet uint8

const (
	needUser paramSet = 1 << iota
	needTimestamp
)

// parseParams reads networkName, excludeRawData and the parameters in need.
func parseParams(r *http.Request, need paramSet) (params, error) {
	q := r.URL.Query()
	var p params

	p.network = q.Get("networkName")
	if p.network == "" {
		return p, fault.BadRequest("networkName is required")
	}

	if raw := q.Get("excludeRawData"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fault.BadRequest("excludeRawData must be a boolean, got %q", raw)
		}
		p.excludeRawData = v
	}

	if need&needUser != 0 {
		raw := q.Get("userAddress")
		if raw == "" {
			return p, fault.BadRequest("userAddress is required")
		}
		if !common.IsHexAddress(raw) {
			return p, fault.BadRequest("userAddress is not a valid address: %q", raw)
		}
		p.user = common.HexToAddress(raw)
	}

	if need&needTimestamp != 0 {
		raw := q.Get("timestamp")
		if raw == "" {
			return p, fault.BadRequest("timestamp is required")
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, fault.BadRequest("timestamp must be an integer, got %q", raw)
		}
		p.timestamp = v
	}

	return p, nil
}
