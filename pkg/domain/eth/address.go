// Package eth holds the small value types shared by every domain package:
// addresses, assets and allowances. It intentionally carries no behaviour
// beyond what the settlement math needs.
package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account or contract address.
type Address = common.Address

// NativeToken is the sentinel address used throughout the auction to mean
// "the chain's native currency" (ETH on mainnet), following the convention
// used by most DEX aggregators: 0xEeee...EEeE.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// WETHAddress identifies the canonical wrapped-native-token contract for the
// configured chain. It is injected once at startup from configuration.
type WETHAddress struct {
	Address Address
}

// Wrap maps the native token sentinel to WETH, leaving every other address
// untouched. wrap(wrap(t)) == wrap(t) holds because WETH is never itself the
// sentinel.
func Wrap(token Address, weth WETHAddress) Address {
	if token == NativeToken {
		return weth.Address
	}
	return token
}

// Asset pairs a token with an amount of it.
type Asset struct {
	Token  Address
	Amount *big.Int
}

// Ether is a quantity of the native currency, denominated in wei.
type Ether struct {
	Wei *big.Int
}

func (e Ether) String() string {
	if e.Wei == nil {
		return "0"
	}
	return e.Wei.String()
}
