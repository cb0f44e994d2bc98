package settlement

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

func nameSolver(name string) solution.Solver { return fakeSolver(name) }

type fakeSolver string

func (f fakeSolver) Name() string { return string(f) }

func TestScoreOfSolverScore(t *testing.T) {
	s := Settlement{SolverScore: solution.SolverScore{Value: big.NewInt(42)}}
	got := ScoreOf(s, big.NewInt(1))
	assert.Equal(t, 0, got.Value.Cmp(big.NewInt(42)))
}

func TestScoreOfRiskAdjustedClampsProbability(t *testing.T) {
	sellToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyToken := common.HexToAddress("0x2222222222222222222222222222222222222222")

	trade := solution.Fulfillment{
		Order: auction.Order{
			Sell: eth.Asset{Token: sellToken},
			Buy:  eth.Asset{Token: buyToken, Amount: big.NewInt(100)},
			Kind: auction.Market,
		},
		Executed: big.NewInt(100),
		Fee:      solution.ProtocolFee{},
	}
	s := Settlement{
		SolverScore: solution.RiskAdjustedScore{SuccessProbability: 5}, // out of range, should clamp to 1
		Trades:      []solution.Trade{trade},
		Prices: []eth.Asset{
			{Token: sellToken, Amount: big.NewInt(2)},
			{Token: buyToken, Amount: big.NewInt(1)},
		},
		Gas: 0,
	}

	got := ScoreOf(s, big.NewInt(0))
	// surplus = executed*sellPrice/buyPrice - buyAmount = 100*2/1 - 100 = 100,
	// scaled by clamped probability 1 => 100.
	assert.Equal(t, 0, got.Value.Cmp(big.NewInt(100)), "got %s", got.Value)
}

func TestRankIsDescendingWithLaterArrivalWinningTies(t *testing.T) {
	low := Settlement{Solver: nameSolver("low"), SolverScore: solution.SolverScore{Value: big.NewInt(1)}}
	high := Settlement{Solver: nameSolver("high"), SolverScore: solution.SolverScore{Value: big.NewInt(10)}}
	tieA := Settlement{Solver: nameSolver("tieA"), SolverScore: solution.SolverScore{Value: big.NewInt(5)}}
	tieB := Settlement{Solver: nameSolver("tieB"), SolverScore: solution.SolverScore{Value: big.NewInt(5)}}

	ranked := Rank([]Settlement{low, tieA, high, tieB}, big.NewInt(0))
	require.Len(t, ranked, 4)
	assert.Equal(t, "high", ranked[0].Solver.Name())
	assert.Equal(t, "tieB", ranked[1].Solver.Name(), "later-arrival tie-break")
	assert.Equal(t, "tieA", ranked[2].Solver.Name())
	assert.Equal(t, "low", ranked[3].Solver.Name())
}

func TestWinnerOnEmptyInput(t *testing.T) {
	_, ok := Winner(nil, big.NewInt(0))
	assert.False(t, ok)
}
