package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ragetrade/vaultmetrics/pkg/retry"
	"github.com/ragetrade/vaultmetrics/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPClient is a JSON-RPC 2.0 client over HTTP that rate limits requests,
// fails over across endpoints and opens a circuit-breaker per failing endpoint.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	limiter   *rate.Limiter
	retry     retry.Config
	logger    *zap.Logger
	nextID    atomic.Uint64

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	MaxRetries      int
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	retryCfg := retry.DefaultConfig()
	if o.MaxRetries > 0 {
		retryCfg.MaxRetries = o.MaxRetries
	}
	retryCfg.Retryable = isTransient

	return &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		limiter:          rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		retry:            retryCfg,
		logger:           o.Logger,
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
}

// isOpen returns true if the endpoint's breaker is OPEN.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure marks an endpoint as failed and opens the circuit-breaker if the failure count exceeds the threshold.
func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

func (c *HTTPClient) noteSuccess(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep] = 0
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// Call performs one JSON-RPC method call, retrying transient failures with backoff.
func (c *HTTPClient) Call(ctx context.Context, out any, method string, params ...any) error {
	return retry.WithBackoff(ctx, c.retry, c.logger, method, func() error {
		return c.doRPC(ctx, out, method, params)
	})
}

// doRPC sends a JSON-RPC request to the first healthy endpoint, failing over
// on transport errors and 5xx/429 responses. JSON-RPC error objects are returned as *Error.
func (c *HTTPClient) doRPC(ctx context.Context, out any, method string, params []any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}
	if params == nil {
		params = []any{}
	}

	payload, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}

	var lastErr error
	for _, ep := range c.endpoints {
		// Skip endpoints whose breaker is OPEN.
		if c.isOpen(ep) {
			lastErr = fmt.Errorf("circuit open for %s", ep)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = &TransportError{Endpoint: ep, Err: err}
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &TransportError{Endpoint: ep, Status: resp.StatusCode}
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("%s: http %d", method, resp.StatusCode)
		}

		var rpcResp jsonrpcResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&rpcResp)
		_ = utils.DrainAndClose(resp.Body)
		if decodeErr != nil {
			lastErr = &TransportError{Endpoint: ep, Err: fmt.Errorf("decode response: %w", decodeErr)}
			c.noteFailure(ep)
			continue
		}
		c.noteSuccess(ep)

		if rpcResp.Error != nil {
			return rpcResp.Error
		}
		if out == nil {
			return nil
		}
		if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
			return ErrNotFound
		}
		return json.Unmarshal(rpcResp.Result, out)
	}

	return lastErr
}

// isTransient reports whether a failed call may succeed when repeated.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var re *Error
	if errors.As(err, &re) {
		return re.IsRateLimited()
	}
	return false
}
