package liquidity

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const swapABIJSON = `[{
	"name": "swap",
	"type": "function",
	"inputs": [
		{"name": "sellToken", "type": "address"},
		{"name": "sellAmount", "type": "uint256"},
		{"name": "buyToken", "type": "address"},
		{"name": "minBuyAmount", "type": "uint256"}
	],
	"outputs": []
}]`

var swapABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(swapABIJSON))
	if err != nil {
		panic("liquidity: invalid swap ABI: " + err.Error())
	}
	swapABI = parsed
}
