package contracts

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topic0 hashes of the streams the aggregated metrics are sampled on.
var (
	DepositTopic            = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
	WithdrawTopic           = crypto.Keccak256Hash([]byte("Withdraw(address,address,address,uint256,uint256)"))
	RebalancedTopic         = crypto.Keccak256Hash([]byte("Rebalanced()"))
	DepositTokenTopic       = crypto.Keccak256Hash([]byte("DepositToken(uint256,address,address,uint256,uint256)"))
	IncreaseUsdgAmountTopic = crypto.Keccak256Hash([]byte("IncreaseUsdgAmount(address,uint256)"))
	DecreaseUsdgAmountTopic = crypto.Keccak256Hash([]byte("DecreaseUsdgAmount(address,uint256)"))
)

// AddressTopic left-pads an address into an indexed topic value.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
