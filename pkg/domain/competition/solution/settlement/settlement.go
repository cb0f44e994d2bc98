// Package settlement turns a solver's Solution into the fully verified and
// priced object the mempool submitter can broadcast: a Settlement. This is
// the encoding pipeline (C5), the merger (C6), the scorer (C7) and the
// calldata serializer all live here, because they all operate on the same
// struct and share its invariants.
package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/auctiondriver/driver/pkg/domain/auction"
	"github.com/auctiondriver/driver/pkg/domain/competition/solution"
	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Settlement is the encoded form of one Solution bound to one Auction.
type Settlement struct {
	AuctionID    *auction.Id
	Target       eth.Address // the settlement contract the encoded tx calls
	Solver       solution.Solver
	SolverScore  solution.Score
	Trades       []solution.Trade
	Prices       []eth.Asset
	Interactions []solution.Interaction // approvals already prepended
	AccessList   types.AccessList
	Gas          uint64
}

// Orders returns the set of order UIDs this settlement fulfills, for the
// Reveal the competition hands back to the caller.
func (s Settlement) Orders() map[auction.Uid]struct{} {
	out := make(map[auction.Uid]struct{}, len(s.Trades))
	for _, t := range s.Trades {
		out[t.OrderUID()] = struct{}{}
	}
	return out
}

func priceOf(prices []eth.Asset, token eth.Address) *big.Int {
	for _, p := range prices {
		if p.Token == token {
			return p.Amount
		}
	}
	return nil
}
