package settlement

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// ErrInvalidClearingPrices mirrors solution.ErrInvalidClearingPrices but is
// raised again here in case a merge recombines trades and prices into a
// state that is no longer price-complete.
var ErrInvalidClearingPrices = errors.New("invalid clearing prices")

// ErrDifferentSolvers is returned by Merge when asked to combine settlements
// from two different solvers.
var ErrDifferentSolvers = errors.New("attempted to merge settlements from different solvers")

// ErrOverlappingOrders is returned by Merge when both settlements fulfill
// the same order UID; the merger's design rejects the merge rather than
// unioning the fulfillments (§9 open question, resolved: reject).
var ErrOverlappingOrders = errors.New("merge: overlapping orders between settlements")

// ErrConflictingPrices is returned by Merge when both settlements clear the
// same token at different prices.
var ErrConflictingPrices = errors.New("merge: conflicting clearing prices between settlements")

// AssetFlowError reports the per-token imbalance detected in step 7 of the
// encoder.
type AssetFlowError struct {
	Balances map[eth.Address]*big.Int
}

func (e *AssetFlowError) Error() string {
	return fmt.Sprintf("asset flow imbalance across %d token(s)", len(e.Balances))
}

// NonBufferableTokensUsedError reports internalized interactions whose
// input tokens are not in the auction's trusted set.
type NonBufferableTokensUsedError struct {
	Tokens []eth.Address
}

func (e *NonBufferableTokensUsedError) Error() string {
	return fmt.Sprintf("non bufferable tokens used in internalized interactions: %d token(s)", len(e.Tokens))
}

// ErrFailingInternalization is returned when the uninternalized encoding of
// a settlement that uses internalization does not simulate successfully.
var ErrFailingInternalization = errors.New("invalid internalization: uninternalized solution fails to simulate")

// SolverAccountInsufficientBalanceError is returned when the solver's
// native-token balance can't cover the value an interaction sends.
type SolverAccountInsufficientBalanceError struct {
	Required eth.Ether
}

func (e *SolverAccountInsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient solver account balance, required %s wei", e.Required)
}
