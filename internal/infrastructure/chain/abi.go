package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Only the methods the relay calls are declared.
const (
	ledgerABI = `[
	{"type":"function","name":"nonceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getPaymentFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"withdrawalAgentOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"refundAgentOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"registerWithdrawalAgent","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"agent","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"registerRefundAgent","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"agent","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`

	consumerABI = `[
	{"type":"function","name":"loyaltyPaymentOf","stateMutability":"view","inputs":[{"name":"paymentId","type":"bytes32"}],"outputs":[{"name":"paymentId","type":"bytes32"},{"name":"purchaseId","type":"string"},{"name":"account","type":"address"},{"name":"shopId","type":"bytes32"},{"name":"status","type":"uint8"},{"name":"paidPoint","type":"uint256"},{"name":"feePoint","type":"uint256"}]},
	{"type":"function","name":"openNewLoyaltyPayment","stateMutability":"nonpayable","inputs":[{"name":"paymentId","type":"bytes32"},{"name":"purchaseId","type":"string"},{"name":"amount","type":"uint256"},{"name":"currency","type":"string"},{"name":"shopId","type":"bytes32"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"},{"name":"secretLock","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"closeNewLoyaltyPayment","stateMutability":"nonpayable","inputs":[{"name":"paymentId","type":"bytes32"},{"name":"secret","type":"bytes32"},{"name":"confirm","type":"bool"}],"outputs":[]},
	{"type":"function","name":"openCancelLoyaltyPayment","stateMutability":"nonpayable","inputs":[{"name":"paymentId","type":"bytes32"},{"name":"secretLock","type":"bytes32"},{"name":"signer","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"closeCancelLoyaltyPayment","stateMutability":"nonpayable","inputs":[{"name":"paymentId","type":"bytes32"},{"name":"secret","type":"bytes32"},{"name":"confirm","type":"bool"}],"outputs":[]}
]`

	shopABI = `[
	{"type":"function","name":"nonceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"shopOf","stateMutability":"view","inputs":[{"name":"shopId","type":"bytes32"}],"outputs":[{"name":"shopId","type":"bytes32"},{"name":"name","type":"string"},{"name":"currency","type":"string"},{"name":"account","type":"address"},{"name":"delegator","type":"address"},{"name":"status","type":"uint8"}]},
	{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"name","type":"string"},{"name":"currency","type":"string"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"changeStatus","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"status","type":"uint8"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"changeDelegator","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"delegator","type":"address"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"setSettlementManager","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"managerId","type":"bytes32"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"removeSettlementManager","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"shopId","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"collectSettlement","stateMutability":"nonpayable","inputs":[{"name":"managerId","type":"bytes32"},{"name":"clients","type":"bytes32[]"},{"name":"account","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`

	currencyABI = `[
	{"type":"function","name":"convertCurrency","stateMutability":"view","inputs":[{"name":"amount","type":"uint256"},{"name":"from","type":"string"},{"name":"to","type":"string"}],"outputs":[{"name":"","type":"uint256"}]}
]`

	bridgeABI = `[
	{"type":"function","name":"withdrawViaBridge","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"},{"name":"expiry","type":"uint256"},{"name":"signer","type":"address"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"depositViaBridge","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"},{"name":"expiry","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`
)

var (
	ledgerContractABI   = mustParse("ledger", ledgerABI)
	consumerContractABI = mustParse("consumer", consumerABI)
	shopContractABI     = mustParse("shop", shopABI)
	currencyContractABI = mustParse("currency", currencyABI)
	bridgeContractABI   = mustParse("bridge", bridgeABI)
)

func mustParse(name, definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %s", name, err))
	}
	return parsed
}
