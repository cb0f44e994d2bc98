package solution

import (
	"math/big"

	"github.com/auctiondriver/driver/pkg/domain/eth"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
)

// Interaction is one on-chain call the settlement makes while executing a
// solution: either routing through a known liquidity source, or an
// arbitrary solver-supplied call.
type Interaction interface {
	// Allowances lists the ERC-20 allowances this interaction requires from
	// the settlement contract.
	Allowances() []eth.Required
	// Internalize reports whether this interaction should be skipped
	// on-chain and instead netted against the settlement contract's
	// internal token buffers.
	Internalize() bool
	// Inputs/Outputs feed the asset-flow check (§4.5 step 7).
	Inputs() []eth.Asset
	Outputs() []eth.Asset
}

// LiquidityInteraction routes input into output through a pool from the
// auction's liquidity snapshot. The solver is responsible for resolving the
// pool's router and calldata before returning the solution: the driver
// never re-derives swap calldata itself, it only verifies and executes it.
type LiquidityInteraction struct {
	Pool          liquidity.ID
	RouterAddr    eth.Address
	Calldata      []byte
	Input, Output eth.Asset
	internalize   bool
}

func NewLiquidityInteraction(pool liquidity.ID, router eth.Address, calldata []byte, input, output eth.Asset, internalize bool) LiquidityInteraction {
	return LiquidityInteraction{Pool: pool, RouterAddr: router, Calldata: calldata, Input: input, Output: output, internalize: internalize}
}

func (l LiquidityInteraction) Internalize() bool    { return l.internalize }
func (l LiquidityInteraction) Inputs() []eth.Asset  { return []eth.Asset{l.Input} }
func (l LiquidityInteraction) Outputs() []eth.Asset { return []eth.Asset{l.Output} }

// Allowances: routing through a pool's router needs an allowance for the
// input token, spent by the router contract.
func (l LiquidityInteraction) Allowances() []eth.Required {
	return []eth.Required{{Allowance: eth.Allowance{
		Spender: eth.Spender{Token: l.Input.Token, Address: l.RouterAddr},
		Amount:  l.Input.Amount,
	}}}
}

// CustomInteraction is an arbitrary solver-chosen call (e.g. to a DEX
// aggregator contract, or a wrap/unwrap helper).
type CustomInteraction struct {
	Target      eth.Address
	Value       *big.Int
	Calldata    []byte
	internalize bool
	inputs      []eth.Asset
	outputs     []eth.Asset
	allowances  []eth.Required
}

func NewCustomInteraction(target eth.Address, value *big.Int, calldata []byte, internalize bool, inputs, outputs []eth.Asset, allowances []eth.Required) CustomInteraction {
	if value == nil {
		value = big.NewInt(0)
	}
	return CustomInteraction{
		Target: target, Value: value, Calldata: calldata, internalize: internalize,
		inputs: inputs, outputs: outputs, allowances: allowances,
	}
}

func (c CustomInteraction) Internalize() bool      { return c.internalize }
func (c CustomInteraction) Inputs() []eth.Asset    { return c.inputs }
func (c CustomInteraction) Outputs() []eth.Asset   { return c.outputs }
func (c CustomInteraction) Allowances() []eth.Required { return c.allowances }

// SendsValue reports whether executing this interaction requires the
// settlement contract to forward native value.
func (c CustomInteraction) SendsValue() bool { return c.Value != nil && c.Value.Sign() > 0 }
