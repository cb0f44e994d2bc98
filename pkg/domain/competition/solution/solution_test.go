package solution

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

var (
	tokenA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	weth   = eth.WETHAddress{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}
)

func marketOrder(sell, buy common.Address) auction.Order {
	return auction.Order{Sell: eth.Asset{Token: sell}, Buy: eth.Asset{Token: buy}, Kind: auction.Market}
}

func TestNewRejectsIncompleteClearingPrices(t *testing.T) {
	trades := []Trade{Fulfillment{Order: marketOrder(tokenA, tokenB), Executed: big.NewInt(1), Fee: ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{tokenA: big.NewInt(1)} // missing tokenB

	_, err := New(1, trades, prices, nil, nil, SolverScore{Value: big.NewInt(0)}, weth)
	if !errors.Is(err, ErrInvalidClearingPrices) {
		t.Fatalf("New() = %v, want ErrInvalidClearingPrices", err)
	}
}

func TestIsEmpty(t *testing.T) {
	liquidityOnly := []Trade{Fulfillment{Order: auction.Order{Kind: auction.Liquidity}, Executed: big.NewInt(1), Fee: ProtocolFee{}}}
	sol, err := New(1, liquidityOnly, nil, nil, nil, SolverScore{Value: big.NewInt(0)}, weth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sol.IsEmpty() {
		t.Error("expected a solution with only liquidity fulfillments to be empty")
	}
}

func TestExtendNativePricesAddsEthWhenBought(t *testing.T) {
	trades := []Trade{
		Fulfillment{Order: marketOrder(tokenA, eth.NativeToken), Executed: big.NewInt(1), Fee: ProtocolFee{}},
		Fulfillment{Order: marketOrder(weth.Address, tokenA), Executed: big.NewInt(1), Fee: ProtocolFee{}},
	}
	prices := map[eth.Address]*big.Int{tokenA: big.NewInt(2), weth.Address: big.NewInt(3)}

	out := ExtendNativePrices(trades, prices, weth)

	var sawNative, sawWeth bool
	for _, a := range out {
		if a.Token == eth.NativeToken {
			sawNative = true
			if a.Amount.Cmp(big.NewInt(3)) != 0 {
				t.Errorf("native price = %s, want 3 (copied from WETH)", a.Amount)
			}
		}
		if a.Token == weth.Address {
			sawWeth = true
		}
	}
	if !sawNative {
		t.Error("expected a native-token price entry")
	}
	if !sawWeth {
		t.Error("expected the WETH entry to remain since a user trade also references it")
	}
}

func TestExtendNativePricesDropsUnusedWeth(t *testing.T) {
	// Buys ETH by selling tokenA; no trade references WETH directly, so the
	// WETH price entry itself should be dropped once the native entry is added.
	trades := []Trade{Fulfillment{Order: marketOrder(tokenA, eth.NativeToken), Executed: big.NewInt(1), Fee: ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{tokenA: big.NewInt(2), weth.Address: big.NewInt(3)}

	out := ExtendNativePrices(trades, prices, weth)
	for _, a := range out {
		if a.Token == weth.Address {
			t.Error("expected the WETH entry to be dropped when no trade touches it directly")
		}
	}
}

func TestExtendNativePricesUnchangedWithoutEthBuy(t *testing.T) {
	trades := []Trade{Fulfillment{Order: marketOrder(tokenA, tokenB), Executed: big.NewInt(1), Fee: ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{tokenA: big.NewInt(2), tokenB: big.NewInt(3)}

	out := ExtendNativePrices(trades, prices, weth)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (no native extension expected)", len(out))
	}
}

func TestNormalizeAllowancesSumsAndSaturates(t *testing.T) {
	spenderAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	interactions := []Interaction{
		NewLiquidityInteraction("pool-1", spenderAddr, nil, eth.Asset{Token: tokenA, Amount: new(big.Int).Set(max)}, eth.Asset{}, false),
		NewLiquidityInteraction("pool-2", spenderAddr, nil, eth.Asset{Token: tokenA, Amount: big.NewInt(1)}, eth.Asset{}, false),
	}

	out := NormalizeAllowances(interactions)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (same token+spender collapsed)", len(out))
	}
	if out[0].Amount.Cmp(max) != 0 {
		t.Errorf("allowance amount = %s, want saturated at 2^256-1", out[0].Amount)
	}
}

func TestSortedPricesIsDeterministic(t *testing.T) {
	prices := map[eth.Address]*big.Int{tokenB: big.NewInt(1), tokenA: big.NewInt(2)}
	out := SortedPrices(prices)
	if len(out) != 2 || out[0].Token != tokenA || out[1].Token != tokenB {
		t.Errorf("SortedPrices() = %v, want tokenA before tokenB lexicographically", out)
	}
}
