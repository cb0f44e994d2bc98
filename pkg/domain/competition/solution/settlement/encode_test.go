package settlement

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// fakeBlockchain satisfies the Blockchain port with fixed, configurable
// responses, so the encoder can be exercised without a live node.
type fakeBlockchain struct {
	contract        eth.Address
	solverAddr      eth.Address
	existingAllowance *big.Int
	nativeBalance   *big.Int
	chainID         *big.Int
}

func (f *fakeBlockchain) Allowance(ctx context.Context, token, owner, spender eth.Address) (*big.Int, error) {
	if f.existingAllowance != nil {
		return f.existingAllowance, nil
	}
	return big.NewInt(0), nil
}
func (f *fakeBlockchain) SettlementContract() eth.Address { return f.contract }
func (f *fakeBlockchain) ReceiverIsContract(ctx context.Context, addr eth.Address) (bool, error) {
	return false, nil
}
func (f *fakeBlockchain) ChainID(ctx context.Context) (*big.Int, error) { return f.chainID, nil }
func (f *fakeBlockchain) NativeBalance(ctx context.Context, addr eth.Address) (*big.Int, error) {
	if f.nativeBalance != nil {
		return f.nativeBalance, nil
	}
	return big.NewInt(0), nil
}
func (f *fakeBlockchain) SolverAddress() eth.Address { return f.solverAddr }

// fakeSimulator satisfies the Simulator port with no-op responses: an empty
// access list and a fixed gas estimate.
type fakeSimulator struct {
	gas     uint64
	failGas bool
}

func (f *fakeSimulator) AccessList(ctx context.Context, tx *types.Transaction, partial types.AccessList) (types.AccessList, error) {
	return types.AccessList{}, nil
}
func (f *fakeSimulator) Gas(ctx context.Context, tx *types.Transaction, accessList types.AccessList) (uint64, error) {
	if f.failGas {
		return 0, ErrFailingInternalization
	}
	return f.gas, nil
}

func newTestSolution(t *testing.T) (solution.Solution, auction.Auction) {
	t.Helper()
	sellToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyToken := common.HexToAddress("0x2222222222222222222222222222222222222222")
	router := common.HexToAddress("0x5555555555555555555555555555555555555555")

	order := auction.Order{
		UID:  uid(1),
		Sell: eth.Asset{Token: sellToken, Amount: big.NewInt(100)},
		Buy:  eth.Asset{Token: buyToken, Amount: big.NewInt(90)},
		Kind: auction.Market,
		Side: auction.Sell,
	}
	// A routed swap covering exactly the trade's sell-in/buy-out, so the
	// settlement contract's own balance nets to zero (§4.5 step 7).
	swap := solution.NewLiquidityInteraction("pool", router, nil,
		eth.Asset{Token: sellToken, Amount: big.NewInt(100)},
		eth.Asset{Token: buyToken, Amount: big.NewInt(90)},
		false,
	)
	trades := []solution.Trade{solution.Fulfillment{Order: order, Executed: big.NewInt(100), Fee: solution.ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{sellToken: big.NewInt(1), buyToken: big.NewInt(1)}

	sol, err := solution.New(1, trades, prices, []solution.Interaction{swap}, fakeSolver("solver-a"), solution.SolverScore{Value: big.NewInt(5)}, eth.WETHAddress{})
	if err != nil {
		t.Fatalf("solution.New() error: %v", err)
	}

	a := auction.Auction{
		Tokens: map[eth.Address]auction.TokenInfo{
			sellToken: {Trusted: true},
			buyToken:  {Trusted: true},
		},
	}
	return sol, a
}

func TestEncodeBalancedFulfillment(t *testing.T) {
	sol, a := newTestSolution(t)
	bc := &fakeBlockchain{
		contract:          common.HexToAddress("0x3333333333333333333333333333333333333333"),
		solverAddr:        common.HexToAddress("0x4444444444444444444444444444444444444444"),
		chainID:           big.NewInt(1),
		existingAllowance: new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
	}
	sim := &fakeSimulator{gas: 150000}

	s, err := Encode(context.Background(), a, sol, bc, sim)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if s.Gas != 150000 {
		t.Errorf("Gas = %d, want 150000", s.Gas)
	}
	if s.Target != bc.contract {
		t.Errorf("Target = %s, want %s", s.Target.Hex(), bc.contract.Hex())
	}
	if len(s.Prices) != 2 {
		t.Errorf("len(Prices) = %d, want 2", len(s.Prices))
	}
}

func TestEncodeRejectsAssetFlowImbalance(t *testing.T) {
	sellToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyToken := common.HexToAddress("0x2222222222222222222222222222222222222222")

	// Sell 100 but the order demands paying out 200: the settlement
	// contract would be left owing buyToken, which must be rejected before
	// any simulation call is made.
	order := auction.Order{
		UID:  uid(1),
		Sell: eth.Asset{Token: sellToken, Amount: big.NewInt(100)},
		Buy:  eth.Asset{Token: buyToken, Amount: big.NewInt(200)},
		Kind: auction.Market,
	}
	trades := []solution.Trade{solution.Fulfillment{Order: order, Executed: big.NewInt(100), Fee: solution.ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{sellToken: big.NewInt(1), buyToken: big.NewInt(1)}
	sol, err := solution.New(1, trades, prices, nil, fakeSolver("solver-a"), solution.SolverScore{Value: big.NewInt(5)}, eth.WETHAddress{})
	if err != nil {
		t.Fatalf("solution.New() error: %v", err)
	}
	a := auction.Auction{Tokens: map[eth.Address]auction.TokenInfo{sellToken: {Trusted: true}, buyToken: {Trusted: true}}}

	bc := &fakeBlockchain{chainID: big.NewInt(1)}
	sim := &fakeSimulator{gas: 1}

	_, err = Encode(context.Background(), a, sol, bc, sim)
	var flowErr *AssetFlowError
	if err == nil {
		t.Fatal("expected an asset-flow error, got nil")
	}
	if !asAssetFlowError(err, &flowErr) {
		t.Fatalf("Encode() error = %v (%T), want *AssetFlowError", err, err)
	}
}

func asAssetFlowError(err error, target **AssetFlowError) bool {
	if e, ok := err.(*AssetFlowError); ok {
		*target = e
		return true
	}
	return false
}

func TestEncodeComputesApprovalWhenAllowanceInsufficient(t *testing.T) {
	sellToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyToken := common.HexToAddress("0x2222222222222222222222222222222222222222")
	router := common.HexToAddress("0x5555555555555555555555555555555555555555")

	order := auction.Order{
		UID:  uid(1),
		Sell: eth.Asset{Token: sellToken, Amount: big.NewInt(100)},
		Buy:  eth.Asset{Token: buyToken, Amount: big.NewInt(90)},
		Kind: auction.Market,
	}
	interaction := solution.NewLiquidityInteraction("pool", router, nil,
		eth.Asset{Token: sellToken, Amount: big.NewInt(100)},
		eth.Asset{Token: buyToken, Amount: big.NewInt(90)},
		false,
	)
	trades := []solution.Trade{solution.Fulfillment{Order: order, Executed: big.NewInt(100), Fee: solution.ProtocolFee{}}}
	prices := map[eth.Address]*big.Int{sellToken: big.NewInt(1), buyToken: big.NewInt(1)}
	sol, err := solution.New(1, trades, prices, []solution.Interaction{interaction}, fakeSolver("solver-a"), solution.SolverScore{Value: big.NewInt(5)}, eth.WETHAddress{})
	if err != nil {
		t.Fatalf("solution.New() error: %v", err)
	}
	a := auction.Auction{Tokens: map[eth.Address]auction.TokenInfo{sellToken: {Trusted: true}, buyToken: {Trusted: true}}}

	bc := &fakeBlockchain{chainID: big.NewInt(1), existingAllowance: big.NewInt(0)}
	sim := &fakeSimulator{gas: 1}

	s, err := Encode(context.Background(), a, sol, bc, sim)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	// One approval interaction should have been prepended ahead of the
	// solver's own liquidity interaction.
	if len(s.Interactions) != 2 {
		t.Fatalf("len(Interactions) = %d, want 2 (approval + liquidity)", len(s.Interactions))
	}
	if _, ok := s.Interactions[0].(solution.CustomInteraction); !ok {
		t.Errorf("Interactions[0] = %T, want solution.CustomInteraction (the approval)", s.Interactions[0])
	}
}
