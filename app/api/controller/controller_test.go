package controller

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	apptypes "github.com/ragetrade/vaultmetrics/app/api/types"
	"github.com/ragetrade/vaultmetrics/pkg/aggregated"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"github.com/ragetrade/vaultmetrics/pkg/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	vault   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	manager = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

type chainFactory struct{ chain *rpctest.Chain }

func (f chainFactory) NewClient([]string) rpc.Client { return f.chain }

type testServer struct {
	handler http.Handler
	store   *cache.MemoryStore
	chain   *rpctest.Chain
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("ADMIN_TOKEN", "secret-token")
	t.Setenv("ADMIN_USER", "ops")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("ADMIN_USERS", "")
	t.Setenv("SESSION_SECRET", "test-secret")

	chain := &rpctest.Chain{
		Head: 50,
		ID:   42161,
		Logs: []types.Log{rpctest.Log(vault, 20, 0, contracts.DepositTopic)},
	}
	chain.Returns(vault, "totalSupply()", rpctest.Scaled(1000, 18))
	chain.Returns(manager, "currentRound()", big.NewInt(1))
	chain.Returns(manager, "roundUsdcBalance()", big.NewInt(0))
	chain.Returns(manager, "roundDeposits(uint256)", big.NewInt(0), big.NewInt(0))

	n := &network.Network{
		Name:              "arbmain",
		RPC:               []string{"http://fake"},
		LogsBlockInterval: 100,
		Contracts: network.Contracts{
			JuniorVault:     network.Contract{Address: vault, DeployBlock: 10},
			BatchingManager: network.Contract{Address: manager, DeployBlock: 10},
		},
		MarketMovement: network.MarketMovement{SampleEvery: 1},
	}

	logger := zaptest.NewLogger(t)
	store := cache.NewMemoryStore()
	c, err := cache.New(store, cache.Options{Clock: clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)), Logger: logger})
	require.NoError(t, err)
	registry := network.NewRegistry(map[string]*network.Network{n.Name: n}, chainFactory{chain}, logger)
	pool := pond.NewPool(2)
	t.Cleanup(func() {
		pool.StopAndWait()
		_ = c.Close()
	})

	app := &apptypes.App{
		Cache:    c,
		Networks: registry,
		Pool:     pool,
		Metrics:  &aggregated.Context{Logger: logger, Cache: c, Networks: registry, Pool: pool},
		Logger:   logger,
	}
	ctler := NewController(app)
	router, err := ctler.NewRouter()
	require.NoError(t, err)

	return &testServer{handler: WithCORS(ctler.WithRequestLog(router)), store: store, chain: chain}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func TestAggregatedEndpoints(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name         string
		path         string
		status       int
		cacheSeconds float64
		errContains  string
	}{
		{
			name:         "total shares",
			path:         "/data/aggregated/get-total-shares?networkName=arbmain",
			status:       http.StatusOK,
			cacheSeconds: float64(aggregated.TTL / time.Second),
		},
		{
			name:         "total shares without raw data",
			path:         "/data/aggregated/get-total-shares?networkName=arbmain&excludeRawData=true",
			status:       http.StatusOK,
			cacheSeconds: float64(aggregated.TTL / time.Second),
		},
		{
			name:        "missing network",
			path:        "/data/aggregated/get-total-shares",
			status:      http.StatusBadRequest,
			errContains: "networkName",
		},
		{
			name:        "bad excludeRawData",
			path:        "/data/aggregated/get-aave-lends?networkName=arbmain&excludeRawData=maybe",
			status:      http.StatusBadRequest,
			errContains: "excludeRawData",
		},
		{
			name:         "unknown network is cached briefly",
			path:         "/data/aggregated/get-total-shares?networkName=goerli",
			status:       http.StatusBadRequest,
			cacheSeconds: float64(cache.MaxErrorSeconds),
			errContains:  "unsupported network",
		},
		{
			name:        "bad user address",
			path:        "/data/aggregated/user/get-shares?networkName=arbmain&userAddress=0x123",
			status:      http.StatusBadRequest,
			errContains: "userAddress",
		},
		{
			name:        "missing user address",
			path:        "/data/aggregated/user/get-aave-lends?networkName=arbmain",
			status:      http.StatusBadRequest,
			errContains: "userAddress",
		},
		{
			name:        "bad timestamp",
			path:        "/data/get-block-by-timestamp?networkName=arbmain&timestamp=yesterday",
			status:      http.StatusBadRequest,
			errContains: "timestamp",
		},
		{
			name:         "block by timestamp",
			path:         "/data/get-block-by-timestamp?networkName=arbmain&timestamp=250",
			status:       http.StatusOK,
			cacheSeconds: float64(aggregated.BlockByTimestampTTL / time.Second),
		},
		{
			// No aUSDC address configured: a server failure, never cached.
			name:        "server failure",
			path:        "/data/aggregated/get-aave-lends?networkName=arbmain",
			status:      http.StatusInternalServerError,
			errContains: "aUsdc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, get(tt.path))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.cacheSeconds, body["cacheSeconds"])
			if tt.errContains != "" {
				assert.Contains(t, body["error"], tt.errContains)
				assert.NotContains(t, body, "result")
				return
			}
			assert.Contains(t, body, "result")
			assert.NotContains(t, body, "error")
		})
	}
}

func TestBlockByTimestampResult(t *testing.T) {
	s := newTestServer(t)

	// 12 seconds per block: 250 falls in block 20.
	_, body := s.do(t, get("/data/get-block-by-timestamp?networkName=arbmain&timestamp=250"))
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(20), result["blockNumber"])
	assert.Equal(t, float64(240), result["timestamp"])
}

func TestExcludeRawDataDropsSamples(t *testing.T) {
	s := newTestServer(t)

	_, full := s.do(t, get("/data/aggregated/get-total-shares?networkName=arbmain"))
	_, slim := s.do(t, get("/data/aggregated/get-total-shares?networkName=arbmain&excludeRawData=true"))

	assert.Contains(t, full["result"], "data")
	assert.NotContains(t, slim["result"], "data")
	assert.Equal(t, full["cacheTimestamp"], slim["cacheTimestamp"])
}

func TestFlushAll(t *testing.T) {
	s := newTestServer(t)

	s.do(t, get("/data/aggregated/get-total-shares?networkName=arbmain"))
	require.Positive(t, s.store.Len())

	rec, _ := s.do(t, httptest.NewRequest(http.MethodPost, "/admin/flush-all", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Positive(t, s.store.Len())

	req := httptest.NewRequest(http.MethodPost, "/admin/flush-all", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":null,"cacheSeconds":0}`, rec.Body.String())
	assert.Zero(t, s.store.Len())

	// The next request recomputes.
	queries := s.chain.LogQueries.Load()
	s.do(t, get("/data/aggregated/get-total-shares?networkName=arbmain"))
	assert.Greater(t, s.chain.LogQueries.Load(), queries)
}

func TestLoginSession(t *testing.T) {
	s := newTestServer(t)

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, login("{").Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"username":"ops","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"username":"nobody","password":"hunter2"}`).Code)

	rec := login(`{"username":"ops","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	req := get("/admin/cache/stats")
	req.AddCookie(cookies[0])
	statsRec, stats := s.do(t, req)
	require.Equal(t, http.StatusOK, statsRec.Code)
	assert.Contains(t, stats, "hits")
	assert.Contains(t, stats, "distinctKeysApprox")

	forged := get("/admin/cache/stats")
	forged.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-jwt"})
	forgedRec, _ := s.do(t, forged)
	assert.Equal(t, http.StatusUnauthorized, forgedRec.Code)

	logout := httptest.NewRecorder()
	s.handler.ServeHTTP(logout, httptest.NewRequest(http.MethodPost, "/admin/logout", nil))
	assert.Equal(t, http.StatusNoContent, logout.Code)
	require.Len(t, logout.Result().Cookies(), 1)
	assert.Negative(t, logout.Result().Cookies()[0].MaxAge)
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/data/aggregated/get-total-shares", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("request id generated", func(t *testing.T) {
		rec, _ := s.do(t, get("/health"))
		assert.Len(t, rec.Header().Get(requestIDHeader), 36)
	})

	t.Run("request id kept", func(t *testing.T) {
		req := get("/health")
		req.Header.Set(requestIDHeader, "abc")
		rec, _ := s.do(t, req)
		assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, get("/health"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"arbmain": "ok"}, body["networks"])
}

func TestParseParams(t *testing.T) {
	req := get("/x?networkName=arbmain&userAddress=0x2000000000000000000000000000000000000001&timestamp=-5&excludeRawData=1")
	p, err := parseParams(req, needUser|needTimestamp)
	require.NoError(t, err)
	assert.Equal(t, "arbmain", p.network)
	assert.Equal(t, common.HexToAddress("0x2000000000000000000000000000000000000001"), p.user)
	assert.Equal(t, int64(-5), p.timestamp)
	assert.True(t, p.excludeRawData)

	_, err = parseParams(get("/x?networkName=arbmain"), needTimestamp)
	require.Error(t, err)

	p, err = parseParams(get("/x?networkName=arbmain&timestamp=oops"), 0)
	require.NoError(t, err)
	assert.Zero(t, p.timestamp)
}
