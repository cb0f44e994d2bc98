package auction

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Uid is the 56-byte identifier the orderbook assigns to every order: order
// digest (32 bytes) || owner (20 bytes) || validTo (4 bytes).
type Uid [56]byte

func (u Uid) String() string { return "0x" + hex.EncodeToString(u[:]) }

// Side is the direction of an order.
type Side int

const (
	Sell Side = iota
	Buy
)

// Kind classifies an order for the purposes of fee handling and whether it
// is an end-user order at all.
type Kind int

const (
	// Market orders pay a protocol-specified fee baked into the order.
	Market Kind = iota
	// Limit orders allow the solver to compute a surplus fee at settlement
	// time, as long as it does not exceed the order's own limit.
	Limit
	// Liquidity orders are solver-supplied and never count as user trades.
	Liquidity
)

// Order is an end-user (or, for Kind == Liquidity, solver-supplied) intent
// to trade, as carried by the auction.
type Order struct {
	UID      Uid
	Sell     eth.Asset
	Buy      eth.Asset
	Fee      eth.Asset
	Side     Side
	Kind     Kind
	Partial  bool
	// SurplusFee is only meaningful when Kind == Limit; it is the maximum
	// surplus fee the solver is permitted to charge this order.
	SurplusFee *big.Int
	Signature  []byte
	ValidTo    uint32
	Receiver   eth.Address
	AppData    [32]byte
}

// BuysEth reports whether the order's buy token is the native ETH sentinel.
func (o Order) BuysEth() bool { return o.Buy.Token == eth.NativeToken }

// Validate enforces the invariant that a surplus fee can only be declared on
// a Limit order.
func (o Order) Validate() error {
	if o.Kind != Limit && o.SurplusFee != nil {
		return fmt.Errorf("order %s: surplus fee only valid for limit orders", o.UID)
	}
	return nil
}
