package rpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ValidateChainID checks that every reachable endpoint serves the expected chain.
// Endpoints are queried in parallel with a 5s timeout each; partial failures are
// tolerated as long as one endpoint answers, but any mismatch fails the validation.
func ValidateChainID(ctx context.Context, factory Factory, endpoints []string, expected uint64, logger *zap.Logger) error {
	if len(endpoints) == 0 {
		return fmt.Errorf("no RPC endpoints provided")
	}

	type result struct {
		endpoint string
		chainID  uint64
		err      error
	}

	results := make(chan result, len(endpoints))

	for _, endpoint := range endpoints {
		go func(endpoint string) {
			timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			chainID, err := factory.NewClient([]string{endpoint}).ChainID(timeoutCtx)
			results <- result{endpoint: endpoint, chainID: chainID, err: err}
		}(endpoint)
	}

	var errs []error
	ok := 0
	for i := 0; i < len(endpoints); i++ {
		res := <-results
		if res.err != nil {
			logger.Warn("RPC endpoint failed during chain ID validation",
				zap.String("endpoint", res.endpoint),
				zap.Error(res.err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", res.endpoint, res.err))
			continue
		}
		if expected != 0 && res.chainID != expected {
			return fmt.Errorf("chain ID mismatch: endpoint %s returned %d, expected %d", res.endpoint, res.chainID, expected)
		}
		ok++
	}

	if ok == 0 {
		return fmt.Errorf("all RPC endpoints failed: %v", errs)
	}

	logger.Info("Chain ID validation successful",
		zap.Uint64("chain_id", expected),
		zap.Int("successful_endpoints", ok),
		zap.Int("failed_endpoints", len(errs)),
	)
	return nil
}
