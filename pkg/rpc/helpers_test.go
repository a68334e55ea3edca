package rpc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/ragetrade/vaultmetrics/pkg/rpc"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestRPCClient(handler http.Handler) *rpc.HTTPClient {
	return newTestRPCClientWithOpts(handler, rpc.Opts{})
}

func newTestRPCClientWithOpts(handler http.Handler, opts rpc.Opts) *rpc.HTTPClient {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			resp := rec.Result()
			if resp.Body == nil {
				resp.Body = http.NoBody
			}
			return resp, nil
		}),
		Timeout: 5 * time.Second,
	}

	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = []string{"http://mock"}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 1
	}
	opts.HTTPClient = httpClient

	return rpc.NewHTTPWithOpts(opts)
}

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// rpcHandler answers each JSON-RPC method with the matching entry of results.
func rpcHandler(results map[string]any, seen func(rpcRequest)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen != nil {
			seen(req)
		}
		body := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		res, ok := results[req.Method]
		switch v := res.(type) {
		case *rpc.Error:
			body["error"] = v
		default:
			if !ok {
				body["error"] = rpc.Error{Code: -32601, Message: "method not found"}
			} else {
				body["result"] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
}
