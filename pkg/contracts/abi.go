package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20JSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const juniorVaultJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getPrice","stateMutability":"view","inputs":[{"name":"maximize","type":"bool"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Deposit","anonymous":false,"inputs":[{"name":"caller","type":"address","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"assets","type":"uint256","indexed":false},{"name":"shares","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdraw","anonymous":false,"inputs":[{"name":"caller","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"assets","type":"uint256","indexed":false},{"name":"shares","type":"uint256","indexed":false}]},
	{"type":"event","name":"Rebalanced","anonymous":false,"inputs":[]}
]`

const batchingManagerJSON = `[
	{"type":"function","name":"userDeposits","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"round","type":"uint256"},{"name":"usdc","type":"uint128"},{"name":"unclaimedShares","type":"uint128"}]},
	{"type":"function","name":"unclaimedShares","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"usdcBalance","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"currentRound","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"roundUsdcBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"roundDeposits","stateMutability":"view","inputs":[{"name":"round","type":"uint256"}],"outputs":[{"name":"totalUsdc","type":"uint128"},{"name":"totalShares","type":"uint128"}]},
	{"type":"function","name":"dnGmxJuniorVaultGlpBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"DepositToken","anonymous":false,"inputs":[{"name":"round","type":"uint256","indexed":true},{"name":"token","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"glpStaked","type":"uint256","indexed":false}]}
]`

const gmxVaultJSON = `[
	{"type":"function","name":"usdgAmounts","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allWhitelistedTokensLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allWhitelistedTokens","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"IncreaseUsdgAmount","anonymous":false,"inputs":[{"name":"token","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"DecreaseUsdgAmount","anonymous":false,"inputs":[{"name":"token","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]}
]`

const aggregatorJSON = `[
	{"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],"outputs":[{"name":"roundId","type":"uint80"},{"name":"answer","type":"int256"},{"name":"startedAt","type":"uint256"},{"name":"updatedAt","type":"uint256"},{"name":"answeredInRound","type":"uint80"}]}
]`

var (
	erc20ABI           = mustParse(erc20JSON)
	juniorVaultABI     = mustParse(juniorVaultJSON)
	batchingManagerABI = mustParse(batchingManagerJSON)
	gmxVaultABI        = mustParse(gmxVaultJSON)
	aggregatorABI      = mustParse(aggregatorJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
