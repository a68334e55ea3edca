package network

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"go.uber.org/zap"
)

// Registry resolves network names to their configuration and a shared RPC client.
type Registry struct {
	networks map[string]*Network
	factory  rpc.Factory
	clients  *xsync.Map[string, rpc.Client]
	logger   *zap.Logger
}

func NewRegistry(networks map[string]*Network, factory rpc.Factory, logger *zap.Logger) *Registry {
	return &Registry{
		networks: networks,
		factory:  factory,
		clients:  xsync.NewMap[string, rpc.Client](),
		logger:   logger,
	}
}

// Names returns the configured network names in sorted order.
func (r *Registry) Names() []string {
	return names(r.networks)
}

// Get returns the named network, or a 400 error for names that are not configured.
func (r *Registry) Get(name string) (*Network, error) {
	n, ok := r.networks[name]
	if !ok {
		return nil, fault.BadRequest("unsupported network: %s", name)
	}
	return n, nil
}

// Client returns the RPC client of the named network, creating it on first use.
func (r *Registry) Client(name string) (rpc.Client, error) {
	n, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	client, _ := r.clients.Compute(name, func(old rpc.Client, loaded bool) (rpc.Client, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		r.logger.Debug("Creating RPC client", zap.String("network", name), zap.Int("endpoints", len(n.RPC)))
		return r.factory.NewClient(n.RPC), xsync.UpdateOp
	})
	return client, nil
}

// ValidateChainIDs checks every network's endpoints against its configured chain id.
func (r *Registry) ValidateChainIDs(ctx context.Context) error {
	for _, name := range r.Names() {
		n := r.networks[name]
		if n.ChainID == 0 {
			continue
		}
		if err := rpc.ValidateChainID(ctx, r.factory, n.RPC, n.ChainID, r.logger.With(zap.String("network", name))); err != nil {
			return fmt.Errorf("network %s: %w", name, err)
		}
	}
	return nil
}

// Health reports the current head of each network, or the error reaching it.
func (r *Registry) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.networks))
	for _, name := range r.Names() {
		client, err := r.Client(name)
		if err == nil {
			_, err = client.BlockNumber(ctx)
		}
		out[name] = err
	}
	return out
}

// Close drops the cached clients.
func (r *Registry) Close() {
	r.clients.Clear()
}
