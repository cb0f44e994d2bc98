package eth

import "math/big"

// Spender identifies the (token, spender) pair an ERC-20 allowance applies
// to. A settlement interaction that pulls tokens out of the settlement
// contract's balance must first be approved for this pair.
type Spender struct {
	Token   Address
	Address Address
}

// Allowance is the amount a spender is entitled to pull for a given token.
type Allowance struct {
	Spender Spender
	Amount  *big.Int
}

// Existing models the result of an on-chain allowance(owner, spender) read.
type Existing struct{ Allowance }

// Required is an allowance the settlement needs in order to execute its
// interactions, before it is known whether it is already satisfied.
type Required struct{ Allowance }

// Approval is an allowance that must be set via an approve() call because
// the existing on-chain allowance falls short of what's required.
type Approval struct{ Allowance }

// Approval checks whether the required allowance exceeds what's already on
// chain for the same spender, returning the approval to make if so.
func (r Required) Approval(existing Existing) (Approval, bool) {
	if r.Spender != existing.Spender {
		return Approval{}, false
	}
	if r.Amount.Cmp(existing.Amount) <= 0 {
		return Approval{}, false
	}
	return Approval{r.Allowance}, true
}

// Max returns the same approval with the amount bumped to the maximum
// representable value. Settlements always approve the max amount: this
// minimizes the number of approvals needed over time and therefore the gas
// spent on them. Solvers are trusted to only route approvals at audited
// spender contracts; an insecure spender could otherwise drain the approved
// allowance.
func (a Approval) Max() Approval {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	a.Amount = max
	return a
}
