// Package sampler reconstructs block-ordered time series from contract event logs.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"go.uber.org/zap"
)

// DefaultMaxBlockSpan is used when Config.MaxBlockSpan is zero.
const DefaultMaxBlockSpan = 2000

// Source is one event stream to sample on.
type Source struct {
	Name    string
	Address common.Address
	// Topics is an eth_getLogs topic filter; Topics[0] selects the event.
	Topics [][]common.Hash
	// StartBlock is where scanning starts when Config.StartBlock is zero, usually the deployment block.
	StartBlock uint64
	// Keep drops fetched logs for which it returns false. Nil keeps all.
	Keep func(types.Log) bool
}

// Config controls one Sample run.
type Config struct {
	StartBlock   uint64
	EndBlock     uint64
	MaxBlockSpan uint64
	// IgnoreMoreEventsInSameBlock keeps one log per block, the first in source order.
	IgnoreMoreEventsInSameBlock bool
	Pool                        pond.Pool
	Logger                      *zap.Logger
}

// Reader performs the historical reads of one sample, pinned to p.BlockNumber.
type Reader[T any] func(ctx context.Context, i int, p Provenance) (T, error)

type sourcedLog struct {
	source int
	log    types.Log
}

// Collect fetches the logs of every source over the configured range, merges them
// into ascending (block, log index) order and reads one payload per retained log.
// Any fetch or read failure aborts the run.
func Collect[T any](ctx context.Context, client rpc.Client, cfg Config, sources []Source, read Reader[T]) ([]Sample[T], error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBlockSpan == 0 {
		cfg.MaxBlockSpan = DefaultMaxBlockSpan
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("sampler: worker pool is required")
	}

	starts := make([]uint64, len(sources))
	for i, src := range sources {
		starts[i] = cfg.StartBlock
		if starts[i] == 0 {
			starts[i] = src.StartBlock
		}
		if starts[i] == 0 {
			return nil, fault.Fatal("Start block is not defined")
		}
	}

	end := cfg.EndBlock
	if end == 0 {
		head, err := client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve end block: %w", err)
		}
		end = head
	}

	var all []sourcedLog
	for i, src := range sources {
		logs, err := fetchSource(ctx, client, cfg, src, starts[i], end)
		if err != nil {
			return nil, fmt.Errorf("fetch %s logs: %w", src.Name, err)
		}
		for _, l := range logs {
			all = append(all, sourcedLog{source: i, log: l})
		}
	}

	provs := merge(all, sources, cfg.IgnoreMoreEventsInSameBlock)
	cfg.Logger.Debug("Sampling logs",
		zap.Int("sources", len(sources)),
		zap.Int("logs", len(all)),
		zap.Int("samples", len(provs)),
		zap.Uint64("end_block", end),
	)

	out := make([]Sample[T], len(provs))
	group := cfg.Pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, p := range provs {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			data, err := read(groupCtx, i, p)
			if err != nil {
				return fmt.Errorf("read %s at block %d: %w", p.EventName, p.BlockNumber, err)
			}
			out[i] = Sample[T]{Provenance: p, Data: data}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Before(out[b].Provenance) })
	return out, nil
}

// fetchSource reads [start, end] in spans of at most cfg.MaxBlockSpan blocks
// concurrently and reassembles the chunks in ascending order.
func fetchSource(ctx context.Context, client rpc.Client, cfg Config, src Source, start, end uint64) ([]types.Log, error) {
	if start > end {
		return nil, nil
	}
	var chunks [][2]uint64
	for from := start; from <= end; from += cfg.MaxBlockSpan {
		to := min(from+cfg.MaxBlockSpan-1, end)
		chunks = append(chunks, [2]uint64{from, to})
		if to == end {
			break
		}
	}

	results := make([][]types.Log, len(chunks))
	group := cfg.Pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, c := range chunks {
		group.SubmitErr(func() error {
			logs, err := client.FilterLogs(groupCtx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(c[0]),
				ToBlock:   new(big.Int).SetUint64(c[1]),
				Addresses: []common.Address{src.Address},
				Topics:    src.Topics,
			})
			if err != nil {
				return err
			}
			kept := logs[:0]
			for _, l := range logs {
				if l.Removed {
					continue
				}
				if src.Keep == nil || src.Keep(l) {
					kept = append(kept, l)
				}
			}
			results[i] = kept
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var out []types.Log
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// merge orders logs by (block, log index). A key seen twice keeps the first
// source; with collapse on, only the first log of each block in source order stays.
func merge(all []sourcedLog, sources []Source, collapse bool) []Provenance {
	sort.SliceStable(all, func(a, b int) bool {
		la, lb := all[a].log, all[b].log
		if la.BlockNumber != lb.BlockNumber {
			return la.BlockNumber < lb.BlockNumber
		}
		if collapse && all[a].source != all[b].source {
			return all[a].source < all[b].source
		}
		if la.Index != lb.Index {
			return la.Index < lb.Index
		}
		return all[a].source < all[b].source
	})

	out := make([]Provenance, 0, len(all))
	for _, sl := range all {
		p := Provenance{
			BlockNumber:     sl.log.BlockNumber,
			EventName:       sources[sl.source].Name,
			TransactionHash: sl.log.TxHash,
			LogIndex:        sl.log.Index,
		}
		if n := len(out); n > 0 {
			last := out[n-1]
			if last.BlockNumber == p.BlockNumber && (collapse || last.LogIndex == p.LogIndex) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Parallelism is the worker count for sampling pools: override when positive,
// otherwise four per CPU, capped at 64.
func Parallelism(override int) int {
	if override > 0 {
		return override
	}
	n := runtime.NumCPU() * 4
	if n < 2 {
		n = 2
	}
	if n > 64 {
		n = 64
	}
	return n
}
