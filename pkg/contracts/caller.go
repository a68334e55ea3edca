package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
)

type caller struct {
	client  rpc.Client
	address common.Address
	abi     abi.ABI
}

// call packs method with args, executes it at block and unpacks the outputs.
func (c caller) call(ctx context.Context, block uint64, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.address.Hex(), method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func (c caller) bigInt(ctx context.Context, block uint64, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, block, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty output", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

// ERC20 reads token balances.
type ERC20 struct{ c caller }

func NewERC20(client rpc.Client, address common.Address) *ERC20 {
	return &ERC20{c: caller{client: client, address: address, abi: erc20ABI}}
}

func (t *ERC20) Address() common.Address { return t.c.address }

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address, block uint64) (*big.Int, error) {
	return t.c.bigInt(ctx, block, "balanceOf", owner)
}

func (t *ERC20) TotalSupply(ctx context.Context, block uint64) (*big.Int, error) {
	return t.c.bigInt(ctx, block, "totalSupply")
}

// JuniorVault is the ERC-4626 delta neutral vault whose shares the metrics allocate.
type JuniorVault struct{ c caller }

func NewJuniorVault(client rpc.Client, address common.Address) *JuniorVault {
	return &JuniorVault{c: caller{client: client, address: address, abi: juniorVaultABI}}
}

func (v *JuniorVault) Address() common.Address { return v.c.address }

func (v *JuniorVault) BalanceOf(ctx context.Context, owner common.Address, block uint64) (*big.Int, error) {
	return v.c.bigInt(ctx, block, "balanceOf", owner)
}

func (v *JuniorVault) TotalSupply(ctx context.Context, block uint64) (*big.Int, error) {
	return v.c.bigInt(ctx, block, "totalSupply")
}

// GetPrice returns the GLP price used by the vault, 18 decimals.
func (v *JuniorVault) GetPrice(ctx context.Context, maximize bool, block uint64) (*big.Int, error) {
	return v.c.bigInt(ctx, block, "getPrice", maximize)
}

// UserDeposit is a user's pending batched deposit.
type UserDeposit struct {
	Round           *big.Int
	Usdc            *big.Int
	UnclaimedShares *big.Int
}

// RoundDeposit is the settlement record of one batching round.
type RoundDeposit struct {
	TotalUsdc   *big.Int
	TotalShares *big.Int
}

// BatchingManager pools USDC deposits into rounds before minting vault shares.
type BatchingManager struct{ c caller }

func NewBatchingManager(client rpc.Client, address common.Address) *BatchingManager {
	return &BatchingManager{c: caller{client: client, address: address, abi: batchingManagerABI}}
}

func (m *BatchingManager) Address() common.Address { return m.c.address }

func (m *BatchingManager) UserDeposits(ctx context.Context, user common.Address, block uint64) (UserDeposit, error) {
	out, err := m.c.call(ctx, block, "userDeposits", user)
	if err != nil {
		return UserDeposit{}, err
	}
	if len(out) != 3 {
		return UserDeposit{}, fmt.Errorf("userDeposits: expected 3 outputs, got %d", len(out))
	}
	d := UserDeposit{}
	d.Round, _ = out[0].(*big.Int)
	d.Usdc, _ = out[1].(*big.Int)
	d.UnclaimedShares, _ = out[2].(*big.Int)
	return d, nil
}

func (m *BatchingManager) UnclaimedShares(ctx context.Context, user common.Address, block uint64) (*big.Int, error) {
	return m.c.bigInt(ctx, block, "unclaimedShares", user)
}

func (m *BatchingManager) UsdcBalance(ctx context.Context, user common.Address, block uint64) (*big.Int, error) {
	return m.c.bigInt(ctx, block, "usdcBalance", user)
}

func (m *BatchingManager) CurrentRound(ctx context.Context, block uint64) (*big.Int, error) {
	return m.c.bigInt(ctx, block, "currentRound")
}

func (m *BatchingManager) RoundUsdcBalance(ctx context.Context, block uint64) (*big.Int, error) {
	return m.c.bigInt(ctx, block, "roundUsdcBalance")
}

func (m *BatchingManager) RoundDeposits(ctx context.Context, round *big.Int, block uint64) (RoundDeposit, error) {
	out, err := m.c.call(ctx, block, "roundDeposits", round)
	if err != nil {
		return RoundDeposit{}, err
	}
	if len(out) != 2 {
		return RoundDeposit{}, fmt.Errorf("roundDeposits: expected 2 outputs, got %d", len(out))
	}
	d := RoundDeposit{}
	d.TotalUsdc, _ = out[0].(*big.Int)
	d.TotalShares, _ = out[1].(*big.Int)
	return d, nil
}

func (m *BatchingManager) JuniorVaultGlpBalance(ctx context.Context, block uint64) (*big.Int, error) {
	return m.c.bigInt(ctx, block, "dnGmxJuniorVaultGlpBalance")
}

// GmxVault is the GMX liquidity vault backing GLP.
type GmxVault struct{ c caller }

func NewGmxVault(client rpc.Client, address common.Address) *GmxVault {
	return &GmxVault{c: caller{client: client, address: address, abi: gmxVaultABI}}
}

func (g *GmxVault) Address() common.Address { return g.c.address }

func (g *GmxVault) UsdgAmount(ctx context.Context, token common.Address, block uint64) (*big.Int, error) {
	return g.c.bigInt(ctx, block, "usdgAmounts", token)
}

// WhitelistedTokens lists every token in the GLP basket at block.
func (g *GmxVault) WhitelistedTokens(ctx context.Context, block uint64) ([]common.Address, error) {
	n, err := g.c.bigInt(ctx, block, "allWhitelistedTokensLength")
	if err != nil {
		return nil, err
	}
	tokens := make([]common.Address, 0, n.Int64())
	for i := int64(0); i < n.Int64(); i++ {
		out, err := g.c.call(ctx, block, "allWhitelistedTokens", big.NewInt(i))
		if err != nil {
			return nil, err
		}
		addr, ok := out[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("allWhitelistedTokens: unexpected output type %T", out[0])
		}
		tokens = append(tokens, addr)
	}
	return tokens, nil
}

// PriceFeed is a Chainlink style USD aggregator.
type PriceFeed struct{ c caller }

func NewPriceFeed(client rpc.Client, address common.Address) *PriceFeed {
	return &PriceFeed{c: caller{client: client, address: address, abi: aggregatorABI}}
}

// LatestAnswer returns the feed answer at block, FeedDecimals precision.
func (p *PriceFeed) LatestAnswer(ctx context.Context, block uint64) (*big.Int, error) {
	out, err := p.c.call(ctx, block, "latestRoundData")
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("latestRoundData: expected 5 outputs, got %d", len(out))
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("latestRoundData: unexpected answer type %T", out[1])
	}
	return answer, nil
}
