package settlement

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// settleABIJSON mirrors the settlement contract's settle entrypoint: a
// token/price table the trades index into, plus the trade and interaction
// tuples themselves.
const settleABIJSON = `[{
  "name": "settle",
  "type": "function",
  "inputs": [
    {"name":"tokens","type":"address[]"},
    {"name":"clearingPrices","type":"uint256[]"},
    {"name":"trades","type":"tuple[]","components":[
      {"name":"sellTokenIndex","type":"uint256"},
      {"name":"buyTokenIndex","type":"uint256"},
      {"name":"receiver","type":"address"},
      {"name":"sellAmount","type":"uint256"},
      {"name":"buyAmount","type":"uint256"},
      {"name":"validTo","type":"uint32"},
      {"name":"appData","type":"bytes32"},
      {"name":"feeAmount","type":"uint256"},
      {"name":"flags","type":"uint256"},
      {"name":"executedAmount","type":"uint256"},
      {"name":"signature","type":"bytes"}
    ]},
    {"name":"interactions","type":"tuple[]","components":[
      {"name":"target","type":"address"},
      {"name":"value","type":"uint256"},
      {"name":"callData","type":"bytes"}
    ]}
  ],
  "outputs": []
}]`

const erc20ABIJSON = `[{
  "name": "approve",
  "type": "function",
  "inputs": [
    {"name":"spender","type":"address"},
    {"name":"amount","type":"uint256"}
  ],
  "outputs": [{"name":"","type":"bool"}]
}]`

var settleABI abi.ABI
var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(settleABIJSON))
	if err != nil {
		panic(fmt.Sprintf("settlement: parse settle abi: %v", err))
	}
	settleABI = parsed

	parsedERC20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("settlement: parse erc20 abi: %v", err))
	}
	erc20ABI = parsedERC20
}

type tradeArg struct {
	SellTokenIndex *big.Int
	BuyTokenIndex  *big.Int
	Receiver       common.Address
	SellAmount     *big.Int
	BuyAmount      *big.Int
	ValidTo        uint32
	AppData        [32]byte
	FeeAmount      *big.Int
	Flags          *big.Int
	ExecutedAmount *big.Int
	Signature      []byte
}

type interactionArg struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// ApproveCalldata packs an ERC-20 approve(spender, amount) call.
func ApproveCalldata(a eth.Approval) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", a.Spender.Address, a.Amount)
	if err != nil {
		return nil, fmt.Errorf("settlement: pack approve: %w", err)
	}
	return data, nil
}

// tradeFlags packs a fulfillment's side, fill mode and fee kind into the
// single flags word the trade tuple carries: bit 0 is side, bit 1 is
// partial fill, bit 2 is surplus fee.
func tradeFlags(f solution.Fulfillment) *big.Int {
	flags := uint64(0)
	if f.Order.Side == auction.Buy {
		flags |= 1 << 0
	}
	if f.Order.Partial {
		flags |= 1 << 1
	}
	if _, ok := f.Fee.(solution.SurplusFee); ok {
		flags |= 1 << 2
	}
	return new(big.Int).SetUint64(flags)
}

func feeAmount(f solution.Fulfillment) *big.Int {
	switch fee := f.Fee.(type) {
	case solution.SurplusFee:
		return fee.Amount
	default:
		if f.Order.Fee.Amount == nil {
			return new(big.Int)
		}
		return f.Order.Fee.Amount
	}
}

// tokenTable builds the deduplicated token/price index every trade tuple
// indexes into, in the Settlement's own (already sorted) price order.
func tokenTable(prices []eth.Asset) (tokens []common.Address, amounts []*big.Int, index map[eth.Address]int) {
	index = make(map[eth.Address]int, len(prices))
	for i, p := range prices {
		index[p.Token] = i
		tokens = append(tokens, p.Token)
		amounts = append(amounts, p.Amount)
	}
	return tokens, amounts, index
}

func encodeTrades(s Settlement, index map[eth.Address]int) ([]tradeArg, error) {
	out := make([]tradeArg, 0, len(s.Trades))
	for _, t := range s.Trades {
		f, ok := t.(solution.Fulfillment)
		if !ok {
			// Jit trades settle purely out of interaction flow and never
			// appear in the trade tuple list.
			continue
		}
		sellIdx, ok := index[f.Order.Sell.Token]
		if !ok {
			return nil, fmt.Errorf("settlement: no clearing price for sell token of order %s", f.Order.UID)
		}
		buyIdx, ok := index[f.Order.Buy.Token]
		if !ok {
			return nil, fmt.Errorf("settlement: no clearing price for buy token of order %s", f.Order.UID)
		}
		out = append(out, tradeArg{
			SellTokenIndex: big.NewInt(int64(sellIdx)),
			BuyTokenIndex:  big.NewInt(int64(buyIdx)),
			Receiver:       f.Order.Receiver,
			SellAmount:     f.Order.Sell.Amount,
			BuyAmount:      f.Order.Buy.Amount,
			ValidTo:        f.Order.ValidTo,
			AppData:        f.Order.AppData,
			FeeAmount:      feeAmount(f),
			Flags:          tradeFlags(f),
			ExecutedAmount: f.Executed,
			Signature:      f.Order.Signature,
		})
	}
	return out, nil
}

// interactionCalldata returns the on-chain call an Interaction resolves to:
// a LiquidityInteraction carries pre-resolved router calldata, a
// CustomInteraction its own.
func interactionCalldata(in solution.Interaction) (target eth.Address, value *big.Int, calldata []byte) {
	switch v := in.(type) {
	case solution.LiquidityInteraction:
		return v.RouterAddr, big.NewInt(0), v.Calldata
	case solution.CustomInteraction:
		return v.Target, v.Value, v.Calldata
	default:
		return eth.Address{}, big.NewInt(0), nil
	}
}

func encodeInteractions(interactions []solution.Interaction, skipInternalized bool) []interactionArg {
	out := make([]interactionArg, 0, len(interactions))
	for _, in := range interactions {
		if skipInternalized && in.Internalize() {
			continue
		}
		target, value, calldata := interactionCalldata(in)
		out = append(out, interactionArg{Target: target, Value: value, CallData: calldata})
	}
	return out
}

// encode packs the settle() calldata. When skipInternalized is true,
// interactions flagged Internalize() are left out: the settlement contract
// nets them against its own token buffers instead of executing them
// on-chain. The full (skipInternalized == false) encoding is used to
// verify internalization is safe (§4.5 step 6) and is returned by
// Competition.Settle as the uninternalized calldata; it is never broadcast.
func encode(s Settlement, skipInternalized bool) ([]byte, error) {
	tokens, prices, index := tokenTable(s.Prices)
	trades, err := encodeTrades(s, index)
	if err != nil {
		return nil, err
	}
	interactions := encodeInteractions(s.Interactions, skipInternalized)

	data, err := settleABI.Pack("settle", tokens, prices, trades, interactions)
	if err != nil {
		return nil, fmt.Errorf("settlement: pack settle: %w", err)
	}
	return data, nil
}

// EncodeInternalized returns the calldata the submitter actually broadcasts:
// internalized interactions are omitted.
func EncodeInternalized(s Settlement) ([]byte, error) {
	return encode(s, true)
}

// EncodeFull returns the calldata with every interaction executed for real.
// Encode simulates it to check that internalization did not mask a
// failure, and Competition.Settle returns it beside the internalized one.
func EncodeFull(s Settlement) ([]byte, error) {
	return encode(s, false)
}
