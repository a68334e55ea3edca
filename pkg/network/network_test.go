package network

import (
	"context"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleNetworks = `
networks:
  arbmain:
    chainId: 42161
    rpc:
      - https://arb-mainnet.example/v2/${TEST_RPC_KEY}
    getLogsBlockInterval: 1500
    contracts:
      juniorVault:
        address: "0x8478AB5064EbAC770DdCE77E7D31D969205F041E"
        deployBlock: 44570369
      batchingManager:
        address: "0x519Eb01FA6Ed3D72E96E40770A45b13531CEf63d"
        deployBlock: 44570369
    marketMovement:
      startBlock: 44570369
      sampleEvery: 200
      tokens:
        - name: eth
          address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
          priceFeed: "0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612"
  arbgoerli:
    rpc:
      - https://goerli.example
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_RPC_KEY", "secret")

	networks, err := Parse([]byte(sampleNetworks))
	require.NoError(t, err)
	require.Len(t, networks, 2)

	arb := networks["arbmain"]
	assert.Equal(t, "arbmain", arb.Name)
	assert.Equal(t, uint64(42161), arb.ChainID)
	assert.Equal(t, []string{"https://arb-mainnet.example/v2/secret"}, arb.RPC)
	assert.Equal(t, uint64(1500), arb.LogsBlockInterval)
	assert.Equal(t, common.HexToAddress("0x8478AB5064EbAC770DdCE77E7D31D969205F041E"), arb.Contracts.JuniorVault.Address)
	assert.Equal(t, uint64(44570369), arb.Contracts.BatchingManager.DeployBlock)
	assert.Equal(t, uint64(200), arb.MarketMovement.SampleEvery)
	require.Len(t, arb.MarketMovement.Tokens, 1)
	assert.Equal(t, "eth", arb.MarketMovement.Tokens[0].Name)

	goerli := networks["arbgoerli"]
	assert.Equal(t, uint64(DefaultLogsBlockInterval), goerli.LogsBlockInterval)
	assert.Equal(t, uint64(1), goerli.MarketMovement.SampleEvery)
	assert.Zero(t, goerli.Contracts.JuniorVault.DeployBlock)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "networks: {}"},
		{name: "no rpc", doc: "networks:\n  arbmain:\n    chainId: 1\n"},
		{name: "invalid yaml", doc: "networks: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

type countingFactory struct {
	created int
}

func (f *countingFactory) NewClient(endpoints []string) rpc.Client {
	f.created++
	return headClient{}
}

type headClient struct{}

func (headClient) BlockNumber(context.Context) (uint64, error) { return 10, nil }
func (headClient) ChainID(context.Context) (uint64, error)     { return 42161, nil }
func (headClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (headClient) CallContract(context.Context, ethereum.CallMsg, uint64) ([]byte, error) {
	return nil, nil
}
func (headClient) BlockTimestamp(context.Context, uint64) (int64, error) { return 0, nil }

func TestRegistry(t *testing.T) {
	networks, err := Parse([]byte(sampleNetworks))
	require.NoError(t, err)

	factory := &countingFactory{}
	reg := NewRegistry(networks, factory, zaptest.NewLogger(t))

	assert.Equal(t, []string{"arbgoerli", "arbmain"}, reg.Names())

	c1, err := reg.Client("arbmain")
	require.NoError(t, err)
	c2, err := reg.Client("arbmain")
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, 1, factory.created)

	_, err = reg.Get("polygon")
	require.Error(t, err)
	status, ok := fault.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)

	health := reg.Health(context.Background())
	assert.NoError(t, health["arbmain"])
	assert.NoError(t, health["arbgoerli"])

	require.NoError(t, reg.ValidateChainIDs(context.Background()))

	reg.Close()
	_, err = reg.Client("arbmain")
	require.NoError(t, err)
	assert.Equal(t, 4, factory.created)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	require.ErrorContains(t, err, "read networks file")
}
