package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockNumber returns the current head of the chain.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.Call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return uint64(head), nil
}

// ChainID returns the EIP-155 chain id reported by the node.
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Big
	if err := c.Call(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return (*big.Int)(&id).Uint64(), nil
}

// FilterLogs returns the logs matching q. FromBlock and ToBlock are inclusive.
func (c *HTTPClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	if err := c.Call(ctx, &logs, "eth_getLogs", toFilterArg(q)); err != nil {
		return nil, fmt.Errorf("eth_getLogs [%v,%v]: %w", q.FromBlock, q.ToBlock, err)
	}
	return logs, nil
}

// CallContract executes a read-only call pinned to the given block height.
func (c *HTTPClient) CallContract(ctx context.Context, msg ethereum.CallMsg, block uint64) ([]byte, error) {
	arg := map[string]any{"to": msg.To, "data": hexutil.Bytes(msg.Data)}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	var out hexutil.Bytes
	if err := c.Call(ctx, &out, "eth_call", arg, hexutil.EncodeUint64(block)); err != nil {
		return nil, fmt.Errorf("eth_call %s@%d: %w", msg.To, block, err)
	}
	return out, nil
}

type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// BlockTimestamp returns the unix timestamp of the given block.
func (c *HTTPClient) BlockTimestamp(ctx context.Context, block uint64) (int64, error) {
	var h rpcHeader
	if err := c.Call(ctx, &h, "eth_getBlockByNumber", hexutil.EncodeUint64(block), false); err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber %d: %w", block, err)
	}
	return int64(h.Timestamp), nil
}

func toFilterArg(q ethereum.FilterQuery) map[string]any {
	arg := map[string]any{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
		return arg
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
	}
	if q.ToBlock == nil {
		arg["toBlock"] = "latest"
	} else {
		arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
	}
	return arg
}
