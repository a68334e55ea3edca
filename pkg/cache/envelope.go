package cache

import (
	"encoding/json"
	"errors"

	"github.com/ragetrade/vaultmetrics/pkg/fault"
)

// Envelope is the stored and served form of a computation outcome.
// CacheTimestamp and CacheSeconds are both zero when the outcome was never cached.
type Envelope struct {
	Result         json.RawMessage
	Error          string
	Status         int
	CacheTimestamp int64
	CacheSeconds   int64
}

// Failed reports whether the envelope carries an error descriptor.
func (e *Envelope) Failed() bool {
	return e.Error != ""
}

// Err rebuilds the failure as an error, keeping its status class.
func (e *Envelope) Err() error {
	if !e.Failed() {
		return nil
	}
	if e.Status > 0 {
		return fault.New(e.Status, e.Error)
	}
	return errors.New(e.Error)
}

// ValidAt reports whether the envelope may be served at unix time now.
func (e *Envelope) ValidAt(now int64) bool {
	return e.CacheSeconds > 0 && now-e.CacheTimestamp < e.CacheSeconds
}

// Remaining is the validity left at unix time now, in seconds.
func (e *Envelope) Remaining(now int64) int64 {
	return e.CacheTimestamp + e.CacheSeconds - now
}

type successWire struct {
	Result         json.RawMessage `json:"result"`
	CacheTimestamp int64           `json:"cacheTimestamp,omitempty"`
	CacheSeconds   int64           `json:"cacheSeconds"`
}

type failureWire struct {
	Error          string `json:"error"`
	Status         int    `json:"status,omitempty"`
	CacheTimestamp int64  `json:"cacheTimestamp"`
	CacheSeconds   int64  `json:"cacheSeconds"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Failed() {
		return json.Marshal(failureWire{
			Error:          e.Error,
			Status:         e.Status,
			CacheTimestamp: e.CacheTimestamp,
			CacheSeconds:   e.CacheSeconds,
		})
	}
	result := e.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return json.Marshal(successWire{Result: result, CacheTimestamp: e.CacheTimestamp, CacheSeconds: e.CacheSeconds})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w struct {
		Result         json.RawMessage `json:"result"`
		Error          string          `json:"error"`
		Status         int             `json:"status"`
		CacheTimestamp int64           `json:"cacheTimestamp"`
		CacheSeconds   int64           `json:"cacheSeconds"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Envelope{
		Result:         w.Result,
		Error:          w.Error,
		Status:         w.Status,
		CacheTimestamp: w.CacheTimestamp,
		CacheSeconds:   w.CacheSeconds,
	}
	return nil
}
