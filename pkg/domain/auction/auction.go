package auction

import (
	"fmt"
	"math/big"
	"time"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Id identifies one round of the competition. It is optional: a solver
// can be asked to produce a quote for an auction that never receives one.
type Id uint64

// TokenInfo is the market context the autopilot knows about a token.
type TokenInfo struct {
	Decimals       uint8
	Symbol         string
	ReferencePrice *big.Int // may be nil
	AvailableBalance *big.Int
	Trusted        bool
}

// Auction is the immutable request driving one round of the competition.
type Auction struct {
	ID       *Id
	Deadline time.Time
	Orders   []Order
	Tokens   map[eth.Address]TokenInfo
	GasPrice *big.Int
}

// Timeout reduces the deadline to a budget the solver should honor, leaving
// `buffer` for the driver itself to encode, merge, score and reply.
func (a Auction) Timeout(now time.Time, buffer time.Duration) (time.Duration, error) {
	remaining := a.Deadline.Sub(now) - buffer
	if remaining <= 0 {
		return 0, ErrDeadlineExceeded
	}
	return remaining, nil
}

// ErrDeadlineExceeded is returned whenever an auction's deadline has already
// passed (or will pass before the safety buffer elapses).
var ErrDeadlineExceeded = fmt.Errorf("deadline exceeded")

// Trusted reports whether a token is marked as buffer-trusted for this
// auction, defaulting to false for unknown tokens.
func (a Auction) Trusted(token eth.Address) bool {
	info, ok := a.Tokens[token]
	return ok && info.Trusted
}
