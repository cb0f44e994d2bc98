// Package solution models what a solver hands back for one auction round,
// before it has been verified or priced on-chain: a Solution. Settlement,
// the encoded and verified form, lives in the settlement subpackage.
package solution

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Id is a solver-assigned identifier, unique only within one round.
type Id uint64

// Solver is the minimal identity a Solution needs from the solver that
// produced it. The concrete dispatch client lives in package solver; this
// interface keeps the domain decoupled from the transport.
type Solver interface {
	Name() string
}

// Score carries the solver's own opinion of how good a solution is. The
// competition's scorer (package settlement) turns this into a comparable
// Score value once the solution has been encoded.
type Score interface{ isScore() }

// SolverScore is a plain objective value reported directly by the solver,
// denominated in native-token wei.
type SolverScore struct{ Value *big.Int }

func (SolverScore) isScore() {}

// RiskAdjustedScore is an expected-value score: the solver reports its
// estimate of succeeding at all, leaving the driver to combine it with the
// settlement's actual surplus and gas cost once known.
type RiskAdjustedScore struct{ SuccessProbability float64 }

func (RiskAdjustedScore) isScore() {}

// Solution is exactly what a solver returns for one auction round.
type Solution struct {
	id           Id
	trades       []Trade
	prices       map[eth.Address]*big.Int
	interactions []Interaction
	solver       Solver
	score        Score
	weth         eth.WETHAddress
}

// New validates and constructs a Solution. It rejects solutions missing a
// clearing price for either side of a user trade (§3 Solution invariant).
func New(id Id, trades []Trade, prices map[eth.Address]*big.Int, interactions []Interaction, solver Solver, score Score, weth eth.WETHAddress) (Solution, error) {
	s := Solution{id: id, trades: trades, prices: prices, interactions: interactions, solver: solver, score: score, weth: weth}
	for _, t := range s.userTrades() {
		o := t.Order
		if s.ClearingPrice(o.Sell.Token) == nil || s.ClearingPrice(o.Buy.Token) == nil {
			return Solution{}, ErrInvalidClearingPrices
		}
	}
	return s, nil
}

// ErrInvalidClearingPrices is returned by New when a user trade lacks a
// clearing price for one of its two tokens.
var ErrInvalidClearingPrices = fmt.Errorf("invalid clearing prices")

func (s Solution) Id() Id                      { return s.id }
func (s Solution) Trades() []Trade             { return s.trades }
func (s Solution) Interactions() []Interaction { return s.interactions }
func (s Solution) Solver() Solver              { return s.solver }
func (s Solution) Score() Score                { return s.score }
func (s Solution) Weth() eth.WETHAddress       { return s.weth }

// IsEmpty reports whether this solution settles no user trades. Empty
// solutions are legal for a solver to return but useless to the
// competition, which discards them before encoding (observed as
// empty_solution).
func (s Solution) IsEmpty() bool {
	return len(s.userTrades()) == 0
}

// userTrades returns the Fulfillments that settle Market or Limit orders;
// Liquidity-class fulfillments and Jit trades never count.
func (s Solution) userTrades() []Fulfillment {
	return UserTrades(s.trades)
}

// UserTrades filters a trade list down to the Fulfillments that settle
// Market or Limit orders. Liquidity-class fulfillments and Jit trades never
// count as user trades; exported so the settlement package can re-run it
// over a merged trade list.
func UserTrades(trades []Trade) []Fulfillment {
	var out []Fulfillment
	for _, t := range trades {
		f, ok := t.(Fulfillment)
		if !ok {
			continue
		}
		if f.Order.Kind == auction.Market || f.Order.Kind == auction.Limit {
			out = append(out, f)
		}
	}
	return out
}

// ClearingPrice returns the price for token, applying the ETH->WETH
// substitution first.
func (s Solution) ClearingPrice(token eth.Address) *big.Int {
	return s.prices[eth.Wrap(token, s.weth)]
}

// CheckClearingPrices verifies that every user trade has a price for both
// its sell and buy tokens (after ETH->WETH substitution): §4.5 step 1 /
// Solution invariant.
func CheckClearingPrices(trades []Trade, prices map[eth.Address]*big.Int, weth eth.WETHAddress) error {
	for _, t := range UserTrades(trades) {
		sell := eth.Wrap(t.Order.Sell.Token, weth)
		buy := eth.Wrap(t.Order.Buy.Token, weth)
		if prices[sell] == nil || prices[buy] == nil {
			return ErrInvalidClearingPrices
		}
	}
	return nil
}

// ExtendNativePrices returns the published price list, including the
// native-token extension described in §4.5 step 2: if a user trade buys
// ETH, a native-token price equal to the WETH price is added; if no user
// trade actually references WETH, the WETH entry itself is dropped to save
// gas.
func ExtendNativePrices(trades []Trade, prices map[eth.Address]*big.Int, weth eth.WETHAddress) []eth.Asset {
	userTrades := UserTrades(trades)
	buysEth := false
	for _, t := range userTrades {
		if t.Order.BuysEth() {
			buysEth = true
			break
		}
	}
	if !buysEth {
		return SortedPrices(prices)
	}

	touchesWeth := false
	for _, t := range userTrades {
		if t.Order.Sell.Token == weth.Address || t.Order.Buy.Token == weth.Address {
			touchesWeth = true
			break
		}
	}

	out := make(map[eth.Address]*big.Int, len(prices)+1)
	for tok, p := range prices {
		if !touchesWeth && tok == weth.Address {
			continue
		}
		out[tok] = p
	}
	out[eth.NativeToken] = new(big.Int).Set(prices[weth.Address])
	return SortedPrices(out)
}

// ClearingPrices returns the published price list for this solution; see
// ExtendNativePrices.
func (s Solution) ClearingPrices() []eth.Asset {
	return ExtendNativePrices(s.trades, s.prices, s.weth)
}

// SortedPrices renders a price map as a deterministically (lexicographic by
// token) ordered asset list.
func SortedPrices(m map[eth.Address]*big.Int) []eth.Asset {
	out := make([]eth.Asset, 0, len(m))
	for tok, amt := range m {
		out = append(out, eth.Asset{Token: tok, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return bytesLess(out[i].Token, out[j].Token) })
	return out
}

func bytesLess(a, b eth.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Allowances returns the normalized, deterministically ordered allowance
// requirements of this solution's interactions (§3 Allowance
// normalization): one entry per (token, spender), amounts saturating-added.
func (s Solution) Allowances() []eth.Required {
	return NormalizeAllowances(s.interactions)
}

// NormalizeAllowances collapses the allowances required by a bag of
// interactions down to one entry per (token, spender), amounts
// saturating-added, in deterministic lexicographic order (§3 Allowance
// normalization). It is exported so the settlement package can re-run it
// over a merged interaction list.
func NormalizeAllowances(interactions []Interaction) []eth.Required {
	type key struct {
		token, spender eth.Address
	}
	totals := make(map[key]*big.Int)
	order := make([]key, 0)
	for _, in := range interactions {
		for _, req := range in.Allowances() {
			k := key{req.Spender.Token, req.Spender.Address}
			if cur, ok := totals[k]; ok {
				totals[k] = saturatingAdd(cur, req.Amount)
			} else {
				totals[k] = new(big.Int).Set(req.Amount)
				order = append(order, k)
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].token != order[j].token {
			return bytesLess(order[i].token, order[j].token)
		}
		return bytesLess(order[i].spender, order[j].spender)
	})
	out := make([]eth.Required, 0, len(order))
	for _, k := range order {
		out = append(out, eth.Required{Allowance: eth.Allowance{
			Spender: eth.Spender{Token: k.token, Address: k.spender},
			Amount:  totals[k],
		}})
	}
	return out
}

func saturatingAdd(a, b *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if sum.Cmp(max) > 0 {
		return max
	}
	return sum
}
