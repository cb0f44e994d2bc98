package solution

import (
	"fmt"
	"math/big"

	"github.com/auctiondriver/driver/pkg/domain/auction"
)

// Trade is either the fulfillment of a protocol order, or a just-in-time
// order the solver invented for this round to provide liquidity.
type Trade interface {
	// OrderUID identifies the trade for the purposes of merge-time
	// disjointness checks.
	OrderUID() auction.Uid
	// IsUserTrade is true for trades that settle an end-user order (Market
	// or Limit), false for Liquidity orders and Jit trades.
	IsUserTrade() bool
	order() auction.Order
}

// FeeKind selects how a Fulfillment's fee is accounted for.
type FeeKind interface{ isFeeKind() }

// ProtocolFee means the order's own protocol-specified fee applies.
type ProtocolFee struct{}

func (ProtocolFee) isFeeKind() {}

// SurplusFee is a solver-computed fee, only legal for Limit orders.
type SurplusFee struct{ Amount *big.Int }

func (SurplusFee) isFeeKind() {}

// Fulfillment settles part or all of a protocol order.
type Fulfillment struct {
	Order    auction.Order
	Executed *big.Int
	Fee      FeeKind
}

func (f Fulfillment) OrderUID() auction.Uid { return f.Order.UID }

func (f Fulfillment) IsUserTrade() bool {
	return f.Order.Kind == auction.Market || f.Order.Kind == auction.Limit
}

func (f Fulfillment) order() auction.Order { return f.Order }

// Validate enforces the Fulfillment invariants: a Surplus fee only on Limit
// orders, and the executed amount respecting the order's fill semantics.
func (f Fulfillment) Validate() error {
	if _, ok := f.Fee.(SurplusFee); ok && f.Order.Kind != auction.Limit {
		return fmt.Errorf("order %s: surplus fee only valid on limit orders", f.Order.UID)
	}
	limit := f.Order.Sell.Amount
	if f.Order.Side == auction.Buy {
		limit = f.Order.Buy.Amount
	}
	if f.Order.Partial {
		if f.Executed.Cmp(limit) > 0 {
			return fmt.Errorf("order %s: executed %s exceeds limit %s", f.Order.UID, f.Executed, limit)
		}
	} else if f.Executed.Cmp(limit) != 0 {
		return fmt.Errorf("order %s: not partially fillable but executed %s != limit %s", f.Order.UID, f.Executed, limit)
	}
	return nil
}

// Jit is a just-in-time order the solver created purely to supply liquidity
// for this round; it does not originate from the orderbook.
type Jit struct {
	Order    auction.Order
	Executed *big.Int
}

func (j Jit) OrderUID() auction.Uid { return j.Order.UID }
func (j Jit) IsUserTrade() bool     { return false }
func (j Jit) order() auction.Order  { return j.Order }
