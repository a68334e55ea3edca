// Package rpctest provides an in-memory chain implementing rpc.Client for tests.
package rpctest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// CallFunc answers one eth_call. args is the calldata after the selector.
type CallFunc func(args []byte, block uint64) ([]byte, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

// Chain is a fake EVM chain: a head, a log set, block timestamps and contract calls.
type Chain struct {
	Head uint64
	ID   uint64
	Logs []types.Log
	// Time returns the timestamp of a block. Defaults to 12 seconds per block.
	Time func(block uint64) int64

	mu    sync.RWMutex
	calls map[callKey]CallFunc

	LogQueries  atomic.Int64
	ContractRPC atomic.Int64
}

func (c *Chain) BlockNumber(context.Context) (uint64, error) { return c.Head, nil }

func (c *Chain) ChainID(context.Context) (uint64, error) { return c.ID, nil }

func (c *Chain) BlockTimestamp(_ context.Context, block uint64) (int64, error) {
	if block > c.Head {
		return 0, fmt.Errorf("block %d not found", block)
	}
	if c.Time != nil {
		return c.Time(block), nil
	}
	return int64(block) * 12, nil
}

func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.LogQueries.Add(1)
	var from, to uint64 = 0, c.Head
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	if q.ToBlock != nil {
		to = q.ToBlock.Uint64()
	}
	var out []types.Log
	for _, l := range c.Logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !matchTopics(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, block uint64) ([]byte, error) {
	c.ContractRPC.Add(1)
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("invalid call")
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	c.mu.RLock()
	fn, ok := c.calls[callKey{to: *msg.To, selector: sel}]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s %x", msg.To.Hex(), sel)
	}
	return fn(msg.Data[4:], block)
}

// Handle registers fn for calls of signature (e.g. "balanceOf(address)") on to.
func (c *Chain) Handle(to common.Address, signature string, fn CallFunc) {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[callKey]CallFunc{}
	}
	c.calls[callKey{to: to, selector: sel}] = fn
}

// Returns registers a call that answers the same words at every block.
func (c *Chain) Returns(to common.Address, signature string, words ...*big.Int) {
	out := Words(words...)
	c.Handle(to, signature, func([]byte, uint64) ([]byte, error) { return out, nil })
}

// Words ABI-encodes non-negative integers as consecutive 32 byte words.
func Words(vals ...*big.Int) []byte {
	out := make([]byte, 0, 32*len(vals))
	for _, v := range vals {
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}

// AddressWord ABI-encodes an address.
func AddressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

// ArgAddress decodes the address argument at position i of calldata.
func ArgAddress(args []byte, i int) common.Address {
	return common.BytesToAddress(args[32*i : 32*(i+1)])
}

// Scaled returns v * 10^decimals.
func Scaled(v int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// Log builds a log emitted by addr at block with the given topics.
func Log(addr common.Address, block uint64, index uint, topics ...common.Hash) types.Log {
	return types.Log{
		Address:     addr,
		Topics:      topics,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block<<16 | uint64(index))),
	}
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	for i, alts := range filter {
		if len(alts) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, h := range alts {
			if topics[i] == h {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
