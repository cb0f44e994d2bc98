package settlement

import (
	"math/big"

	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
)

// Score is the comparable value the competition ranks settlements by: a
// SolverScore settlement is scored exactly as the solver reported it;
// a RiskAdjustedScore settlement's reported success probability is
// combined with the settlement's own realized surplus and gas cost once
// those are known from encoding.
type Score struct {
	Value *big.Int
}

// Cmp orders two scores: higher is better. Ties (Cmp == 0) are broken by
// the caller, which favors the later-arriving settlement (the scorer
// itself is agnostic to solver identity or submission order).
func (s Score) Cmp(other Score) int {
	return s.Value.Cmp(other.Value)
}

// ScoreOf computes a settlement's Score from its reported solver score,
// its realized surplus (for RiskAdjustedScore solutions) and its gas cost.
// gasPrice is the auction's prevailing gas price, used to convert the
// settlement's gas estimate into a native-token cost comparable to surplus.
func ScoreOf(s Settlement, gasPrice *big.Int) Score {
	switch sc := s.SolverScore.(type) {
	case solution.SolverScore:
		return Score{Value: new(big.Int).Set(sc.Value)}
	case solution.RiskAdjustedScore:
		surplus := surplusOf(s)
		gasCost := new(big.Int).Mul(new(big.Int).SetUint64(s.Gas), gasPrice)
		expected := new(big.Int).Sub(surplus, gasCost)
		adjusted := new(big.Int)
		// scale by success probability, rounding toward zero; probabilities
		// below 0 or above 1 are clamped defensively, since a buggy solver
		// reporting outside that range must not invert the ranking.
		p := sc.SuccessProbability
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		scaled := new(big.Float).Mul(new(big.Float).SetInt(expected), big.NewFloat(p))
		scaled.Int(adjusted)
		return Score{Value: adjusted}
	default:
		return Score{Value: big.NewInt(0)}
	}
}

// surplusOf sums, over every user trade, the difference between what the
// order's limit price demanded and what the settlement's clearing prices
// actually delivered, denominated in the trade's buy token and converted to
// native-token terms via that token's clearing price.
func surplusOf(s Settlement) *big.Int {
	total := new(big.Int)
	for _, t := range s.Trades {
		f, ok := t.(solution.Fulfillment)
		if !ok {
			continue
		}
		sellPrice := priceOf(s.Prices, f.Order.Sell.Token)
		buyPrice := priceOf(s.Prices, f.Order.Buy.Token)
		if sellPrice == nil || buyPrice == nil || buyPrice.Sign() == 0 {
			continue
		}
		// What the executed sell amount buys at the settlement's clearing
		// prices, versus the order's own limit buy amount: the difference,
		// converted into native-token units via buyPrice.
		clearingBuy := new(big.Int).Mul(f.Executed, sellPrice)
		clearingBuy.Quo(clearingBuy, buyPrice)
		delta := new(big.Int).Sub(clearingBuy, f.Order.Buy.Amount)
		if delta.Sign() > 0 {
			nativeValue := new(big.Int).Mul(delta, buyPrice)
			total.Add(total, nativeValue)
		}
	}
	return total
}

// Rank orders a batch of settlements best-first. Equal scores are broken
// in favor of the later-arriving settlement: settlements is assumed to be
// in arrival order, and the insertion sort below moves each newly-inserted
// settlement past every settlement already placed with a score it merely
// matches (not just beats), so the later arrival of a tied pair ends up
// first.
func Rank(settlements []Settlement, gasPrice *big.Int) []Settlement {
	type scored struct {
		s Settlement
		v Score
	}
	ranked := make([]scored, len(settlements))
	for i, s := range settlements {
		ranked[i] = scored{s: s, v: ScoreOf(s, gasPrice)}
	}
	// insertion sort: stable aside from the deliberate tie-break above, and
	// the input sizes here (tens of settlements per round at most) never
	// justify anything fancier.
	for i := 1; i < len(ranked); i++ {
		j := i
		for j > 0 && ranked[j-1].v.Cmp(ranked[j].v) <= 0 {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			j--
		}
	}
	out := make([]Settlement, len(ranked))
	for i, r := range ranked {
		out[i] = r.s
	}
	return out
}

// Winner returns the top-ranked settlement, or false if none were given.
func Winner(settlements []Settlement, gasPrice *big.Int) (Settlement, bool) {
	ranked := Rank(settlements, gasPrice)
	if len(ranked) == 0 {
		return Settlement{}, false
	}
	return ranked[0], true
}
