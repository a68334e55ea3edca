package aggregated

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
)

// depositWithdrawRebalance is the stream every share based metric is sampled on:
// junior vault deposits, withdrawals and rebalances plus WETH batched deposits.
func depositWithdrawRebalance(n *network.Network) ([]sampler.Source, error) {
	if err := requireAddress("juniorVault", n.Contracts.JuniorVault); err != nil {
		return nil, err
	}
	if err := requireAddress("batchingManager", n.Contracts.BatchingManager); err != nil {
		return nil, err
	}
	vault := n.Contracts.JuniorVault
	manager := n.Contracts.BatchingManager

	tokenFilter := []common.Hash(nil)
	if n.Contracts.Weth.Address != (common.Address{}) {
		tokenFilter = []common.Hash{contracts.AddressTopic(n.Contracts.Weth.Address)}
	}

	return []sampler.Source{
		{Name: "Deposit", Address: vault.Address, Topics: [][]common.Hash{{contracts.DepositTopic}}, StartBlock: vault.DeployBlock},
		{Name: "Withdraw", Address: vault.Address, Topics: [][]common.Hash{{contracts.WithdrawTopic}}, StartBlock: vault.DeployBlock},
		{Name: "Rebalanced", Address: vault.Address, Topics: [][]common.Hash{{contracts.RebalancedTopic}}, StartBlock: vault.DeployBlock},
		{
			Name:       "DepositToken",
			Address:    manager.Address,
			Topics:     [][]common.Hash{{contracts.DepositTokenTopic}, nil, tokenFilter},
			StartBlock: manager.DeployBlock,
		},
	}, nil
}

// usdgAmountChanges samples the GMX vault's USDG accounting every sampleEvery blocks.
func usdgAmountChanges(n *network.Network) ([]sampler.Source, error) {
	if err := requireAddress("gmxVault", n.Contracts.GmxVault); err != nil {
		return nil, err
	}
	mm := n.MarketMovement
	start := mm.StartBlock
	if start == 0 {
		start = n.Contracts.GmxVault.DeployBlock
	}
	every := mm.SampleEvery
	keep := func(l types.Log) bool { return l.BlockNumber%every == 0 }

	addr := n.Contracts.GmxVault.Address
	return []sampler.Source{
		{Name: "IncreaseUsdgAmount", Address: addr, Topics: [][]common.Hash{{contracts.IncreaseUsdgAmountTopic}}, StartBlock: start, Keep: keep},
		{Name: "DecreaseUsdgAmount", Address: addr, Topics: [][]common.Hash{{contracts.DecreaseUsdgAmountTopic}}, StartBlock: start, Keep: keep},
	}, nil
}
