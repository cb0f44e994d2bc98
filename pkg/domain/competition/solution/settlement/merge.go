package settlement

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Merge combines two settlements from the same solver into one, provided
// they fulfill disjoint sets of orders and agree on every clearing price
// they share. The merged settlement is re-encoded from scratch: its own
// access list and gas estimate cannot be derived by simply unioning the
// inputs', since the two sets of interactions now execute in the same
// transaction.
func Merge(ctx context.Context, a auction.Auction, x, y Settlement, weth eth.WETHAddress, bc Blockchain, sim Simulator) (Settlement, error) {
	if x.Solver.Name() != y.Solver.Name() {
		return Settlement{}, ErrDifferentSolvers
	}
	xOrders, yOrders := x.Orders(), y.Orders()
	for uid := range xOrders {
		if _, ok := yOrders[uid]; ok {
			return Settlement{}, ErrOverlappingOrders
		}
	}

	priceMap := make(map[eth.Address]*big.Int, len(x.Prices)+len(y.Prices))
	for _, p := range x.Prices {
		priceMap[p.Token] = p.Amount
	}
	for _, p := range y.Prices {
		if existing, ok := priceMap[p.Token]; ok {
			if existing.Cmp(p.Amount) != 0 {
				return Settlement{}, ErrConflictingPrices
			}
			continue
		}
		priceMap[p.Token] = p.Amount
	}

	trades := make([]solution.Trade, 0, len(x.Trades)+len(y.Trades))
	trades = append(trades, x.Trades...)
	trades = append(trades, y.Trades...)

	if err := solution.CheckClearingPrices(trades, priceMap, weth); err != nil {
		return Settlement{}, err
	}
	prices := solution.ExtendNativePrices(trades, priceMap, weth)

	interactions := make([]solution.Interaction, 0, len(x.Interactions)+len(y.Interactions))
	interactions = append(interactions, x.Interactions...)
	interactions = append(interactions, y.Interactions...)

	merged := Settlement{
		AuctionID:    x.AuctionID,
		Target:       x.Target,
		Solver:       x.Solver,
		SolverScore:  combineScores(x.SolverScore, y.SolverScore),
		Trades:       trades,
		Prices:       prices,
		Interactions: interactions,
	}

	return reencode(ctx, a, merged, bc, sim)
}

func combineScores(a, b solution.Score) solution.Score {
	as, aok := a.(solution.SolverScore)
	bs, bok := b.(solution.SolverScore)
	if aok && bok {
		return solution.SolverScore{Value: new(big.Int).Add(as.Value, bs.Value)}
	}
	ar, arok := a.(solution.RiskAdjustedScore)
	br, brok := b.(solution.RiskAdjustedScore)
	if arok && brok {
		return solution.RiskAdjustedScore{SuccessProbability: ar.SuccessProbability * br.SuccessProbability}
	}
	return a
}

// reencode reruns the access-list/gas/internalization/asset-flow/solver-
// balance steps (4-8 of the encoding pipeline) over an already price- and
// trade-complete Settlement, without re-deriving allowances from a
// solution.Solution (the merged settlement has no single Solution anymore).
func reencode(ctx context.Context, a auction.Auction, s Settlement, bc Blockchain, sim Simulator) (Settlement, error) {
	if err := checkAssetFlow(a, s); err != nil {
		return Settlement{}, err
	}
	if err := checkSolverBalance(ctx, s, bc); err != nil {
		return Settlement{}, err
	}

	chainID, err := bc.ChainID(ctx)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: chain id: %w", err)
	}

	partial, err := nativeTransferAccessList(ctx, s.Trades, chainID, bc, sim)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: merge access list pass a: %w", err)
	}
	tx2, err := buildTx(s, chainID, 0)
	if err != nil {
		return Settlement{}, err
	}
	accessList, err := sim.AccessList(ctx, tx2, partial)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: merge access list pass b: %w", err)
	}
	s.AccessList = accessList

	gasTx, err := buildTx(s, chainID, 0)
	if err != nil {
		return Settlement{}, err
	}
	gas, err := sim.Gas(ctx, gasTx, accessList)
	if err != nil {
		return Settlement{}, fmt.Errorf("settlement: merge gas estimate: %w", err)
	}
	s.Gas = gas

	if usesInternalization(s.Interactions) {
		full, err := EncodeFull(s)
		if err != nil {
			return Settlement{}, err
		}
		fullTx, err := buildTxWithData(s, chainID, full)
		if err != nil {
			return Settlement{}, err
		}
		if _, err := sim.Gas(ctx, fullTx, nil); err != nil {
			return Settlement{}, ErrFailingInternalization
		}
	}
	if err := checkNonBufferableTokens(a, s.Interactions); err != nil {
		return Settlement{}, err
	}

	return s, nil
}

// MergeAll repeatedly picks two settlements at random and merges them
// whenever they're compatible, stopping when a full pass produces no
// merge. Each successful merge strictly decreases the number of
// settlements in play, which is the algorithm's monovariant: with n
// settlements there are at most n-1 merges before only one remains (or
// every remaining pair conflicts and the loop settles). rng is exposed so
// tests can fix the merge order (§9).
func MergeAll(ctx context.Context, a auction.Auction, settlements []Settlement, weth eth.WETHAddress, bc Blockchain, sim Simulator, rng *rand.Rand) ([]Settlement, error) {
	pool := append([]Settlement(nil), settlements...)
	for {
		progressed := false
		order := rng.Perm(len(pool))
		for i := 0; i < len(order) && !progressed; i++ {
			for j := i + 1; j < len(order); j++ {
				a1, a2 := order[i], order[j]
				merged, err := Merge(ctx, a, pool[a1], pool[a2], weth, bc, sim)
				if err != nil {
					continue
				}
				next := make([]Settlement, 0, len(pool)-1)
				for k, s := range pool {
					if k == a1 || k == a2 {
						continue
					}
					next = append(next, s)
				}
				next = append(next, merged)
				pool = next
				progressed = true
				break
			}
		}
		if !progressed {
			return pool, nil
		}
	}
}
