package solver

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
)

func testUIDHex(b byte) string {
	return fmt.Sprintf("0x%02x%0110x", b, 0)
}

func TestToAuctionDTOCarriesTokensAndOrders(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := auction.Auction{
		Deadline: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		GasPrice: big.NewInt(7),
		Tokens: map[eth.Address]auction.TokenInfo{
			token: {Decimals: 18, Symbol: "TOK", AvailableBalance: big.NewInt(1000), Trusted: true},
		},
		Orders: []auction.Order{
			{UID: auction.Uid{1}, Sell: eth.Asset{Token: token, Amount: big.NewInt(100)}, Buy: eth.Asset{Token: token, Amount: big.NewInt(90)}, Side: auction.Buy, Kind: auction.Limit},
		},
	}

	dto := toAuctionDTO(a)

	if dto.GasPrice != "7" {
		t.Errorf("GasPrice = %q, want 7", dto.GasPrice)
	}
	tok, ok := dto.Tokens[token.Hex()]
	if !ok {
		t.Fatalf("token %s missing from DTO", token.Hex())
	}
	if tok.AvailableBalance != "1000" || !tok.Trusted {
		t.Errorf("token DTO = %+v, want balance 1000 and trusted", tok)
	}
	if len(dto.Orders) != 1 {
		t.Fatalf("len(Orders) = %d, want 1", len(dto.Orders))
	}
	if dto.Orders[0].Side != "buy" || dto.Orders[0].Kind != "limit" {
		t.Errorf("order DTO side/kind = %s/%s, want buy/limit", dto.Orders[0].Side, dto.Orders[0].Kind)
	}
}

func TestFromTradeDTOFulfillment(t *testing.T) {
	dto := tradeDTO{Kind: "fulfillment", UID: testUIDHex(1), Executed: "100", SurplusFee: "5"}
	trade, err := fromTradeDTO(dto)
	if err != nil {
		t.Fatalf("fromTradeDTO() error: %v", err)
	}
	f, ok := trade.(solution.Fulfillment)
	if !ok {
		t.Fatalf("trade = %T, want solution.Fulfillment", trade)
	}
	if f.Executed.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("Executed = %s, want 100", f.Executed)
	}
	if _, ok := f.Fee.(solution.SurplusFee); !ok {
		t.Errorf("Fee = %T, want solution.SurplusFee", f.Fee)
	}
}

func TestFromTradeDTOJitRequiresOrder(t *testing.T) {
	dto := tradeDTO{Kind: "jit", UID: testUIDHex(1), Executed: "1"}
	if _, err := fromTradeDTO(dto); err == nil {
		t.Error("expected an error for a jit trade missing jitOrder")
	}
}

func TestFromInteractionDTOLiquidityAndCustom(t *testing.T) {
	sellToken := "0x1111111111111111111111111111111111111111"
	buyToken := "0x2222222222222222222222222222222222222222"
	router := "0x5555555555555555555555555555555555555555"

	liq := interactionDTO{
		Kind: "liquidity", Pool: "pool-1", Router: router,
		InputToken: sellToken, InputAmount: "100",
		OutputToken: buyToken, OutputAmount: "90",
	}
	interaction, err := fromInteractionDTO(liq)
	if err != nil {
		t.Fatalf("fromInteractionDTO(liquidity) error: %v", err)
	}
	if len(interaction.Allowances()) != 1 {
		t.Errorf("liquidity interaction should carry one allowance (input token for the router), got %d", len(interaction.Allowances()))
	}

	custom := interactionDTO{
		Kind: "custom", Target: router, Value: "1", Internalize: true,
		InputToken: sellToken, InputAmount: "100",
		OutputToken: buyToken, OutputAmount: "90",
	}
	ci, err := fromInteractionDTO(custom)
	if err != nil {
		t.Fatalf("fromInteractionDTO(custom) error: %v", err)
	}
	if len(ci.Allowances()) != 1 {
		t.Errorf("custom interaction allowances = %d, want 1", len(ci.Allowances()))
	}

	if _, err := fromInteractionDTO(interactionDTO{Kind: "unknown"}); err == nil {
		t.Error("expected an error for an unknown interaction kind")
	}
}

func TestFromScoreDTO(t *testing.T) {
	solver, err := fromScoreDTO(scoreDTO{Kind: "solver", Value: "42"})
	if err != nil {
		t.Fatalf("fromScoreDTO(solver) error: %v", err)
	}
	if _, ok := solver.(solution.SolverScore); !ok {
		t.Errorf("score = %T, want solution.SolverScore", solver)
	}

	risk, err := fromScoreDTO(scoreDTO{Kind: "riskAdjusted", SuccessProbability: 0.9})
	if err != nil {
		t.Fatalf("fromScoreDTO(riskAdjusted) error: %v", err)
	}
	if _, ok := risk.(solution.RiskAdjustedScore); !ok {
		t.Errorf("score = %T, want solution.RiskAdjustedScore", risk)
	}

	if _, err := fromScoreDTO(scoreDTO{Kind: "bogus"}); err == nil {
		t.Error("expected an error for an unknown score kind")
	}
}

func TestToLiquidityDTOsMapsPoolKinds(t *testing.T) {
	snap := liquidity.Snapshot{Pools: []liquidity.Pool{
		liquidity.Reserves{PoolID: "r", ReserveA: big.NewInt(1), ReserveB: big.NewInt(1)},
		liquidity.WeightedPool{PoolID: "w"},
	}}
	dtos := toLiquidityDTOs(snap)
	if len(dtos) != 2 {
		t.Fatalf("len(dtos) = %d, want 2", len(dtos))
	}
	if dtos[0].Kind != "constantProduct" {
		t.Errorf("Reserves kind = %q, want constantProduct", dtos[0].Kind)
	}
	if dtos[1].Kind != "weighted" {
		t.Errorf("WeightedPool kind = %q, want weighted", dtos[1].Kind)
	}
}
