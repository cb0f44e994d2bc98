// Package liquidity fetches the AMM and limit-order liquidity relevant to a
// set of token pairs and hands solvers an immutable snapshot to route
// through.
package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// ID identifies one liquidity source within a Snapshot. Solutions reference
// pools by ID; the swap calldata itself comes from the solver with the
// interaction.
type ID string

// Pair is an unordered pair of distinct tokens.
type Pair struct {
	Token0 eth.Address
	Token1 eth.Address
}

// NewPair builds a canonical (sorted) pair, rejecting identical tokens.
func NewPair(a, b eth.Address) (Pair, error) {
	if a == b {
		return Pair{}, fmt.Errorf("liquidity: pair of identical tokens %s", a)
	}
	if bytesLess(a, b) {
		return Pair{Token0: a, Token1: b}, nil
	}
	return Pair{Token0: b, Token1: a}, nil
}

func bytesLess(a, b eth.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Kind distinguishes the liquidity models a Pool can implement.
type Kind int

const (
	ConstantProduct Kind = iota
	WeightedProduct
	Stable
	LimitOrder
)

// Pool is one source of liquidity: an AMM pool or a standing limit order.
// Swap returns the on-chain call the settlement contract should make to
// route `input` into `output` through this pool.
type Pool interface {
	ID() ID
	Kind() Kind
	Pair() Pair
	Router() eth.Address
	Swap(ctx context.Context, input, output eth.Asset) (calldata []byte, err error)
}

// Reserves is a constant-product (Uniswap-v2-style) pool.
type Reserves struct {
	PoolID      ID
	RouterAddr  eth.Address
	TokenPair   Pair
	ReserveA    *big.Int
	ReserveB    *big.Int
	FeeBps      uint32
}

func (r Reserves) ID() ID            { return r.PoolID }
func (r Reserves) Kind() Kind        { return ConstantProduct }
func (r Reserves) Pair() Pair        { return r.TokenPair }
func (r Reserves) Router() eth.Address { return r.RouterAddr }

func (r Reserves) Swap(_ context.Context, input, output eth.Asset) ([]byte, error) {
	return packSwap(input, output)
}

// WeightedPool is a Balancer-style pool with per-token weights.
type WeightedPool struct {
	PoolID     ID
	RouterAddr eth.Address
	TokenPair  Pair
	Weights    map[eth.Address]*big.Int
	FeeBps     uint32
}

func (w WeightedPool) ID() ID              { return w.PoolID }
func (w WeightedPool) Kind() Kind          { return WeightedProduct }
func (w WeightedPool) Pair() Pair          { return w.TokenPair }
func (w WeightedPool) Router() eth.Address { return w.RouterAddr }
func (w WeightedPool) Swap(_ context.Context, input, output eth.Asset) ([]byte, error) {
	return packSwap(input, output)
}

// StablePool supports more than two tokens at near-1:1 rates (Curve-style).
type StablePool struct {
	PoolID      ID
	RouterAddr  eth.Address
	Tokens      []eth.Address
	Amplifier   *big.Int
}

func (s StablePool) ID() ID              { return s.PoolID }
func (s StablePool) Kind() Kind          { return Stable }
func (s StablePool) Router() eth.Address { return s.RouterAddr }
func (s StablePool) Pair() Pair {
	if len(s.Tokens) < 2 {
		return Pair{}
	}
	p, _ := NewPair(s.Tokens[0], s.Tokens[1])
	return p
}
func (s StablePool) Swap(_ context.Context, input, output eth.Asset) ([]byte, error) {
	return packSwap(input, output)
}

// ForeignLimitOrder is a standing limit order on an external orderbook
// (offered to solvers as a source of liquidity, not as a user order).
type ForeignLimitOrder struct {
	PoolID     ID
	RouterAddr eth.Address
	TokenPair  Pair
	MakerAsset eth.Asset
	TakerAsset eth.Asset
}

func (f ForeignLimitOrder) ID() ID              { return f.PoolID }
func (f ForeignLimitOrder) Kind() Kind          { return LimitOrder }
func (f ForeignLimitOrder) Pair() Pair          { return f.TokenPair }
func (f ForeignLimitOrder) Router() eth.Address { return f.RouterAddr }
func (f ForeignLimitOrder) Swap(_ context.Context, input, output eth.Asset) ([]byte, error) {
	return packSwap(input, output)
}

// packSwap is the generic ABI encoding of a `swap(address,uint256,address,uint256)`
// style router call. Every pool kind above ultimately settles through the
// same router entrypoint; what differs between them is how the driver
// selects and prices the pool, not how the call is shaped.
func packSwap(input, output eth.Asset) ([]byte, error) {
	args, err := swapABI.Pack("swap", input.Token, input.Amount, output.Token, output.Amount)
	if err != nil {
		return nil, fmt.Errorf("liquidity: pack swap calldata: %w", err)
	}
	return args, nil
}

// Snapshot is the immutable liquidity relevant to one auction's token pairs.
type Snapshot struct {
	Pools []Pool
}

// ByID finds a snapshot pool by the solver-chosen ID with a linear scan.
func (s Snapshot) ByID(id ID) (Pool, bool) {
	for _, p := range s.Pools {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Fetcher returns the AMM and limit-order liquidity relevant to a set of
// token pairs. Implementations talk to an indexer, a subgraph, or a node;
// the interface here is deliberately narrow so the competition only depends
// on the contract, never the concrete transport.
type Fetcher interface {
	Fetch(ctx context.Context, pairs []Pair) (Snapshot, error)
}

// Dedup removes duplicate pairs, preserving a deterministic order so that
// repeated calls with the same orders produce the same fetch request.
func Dedup(pairs []Pair) []Pair {
	seen := make(map[Pair]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Token0 != out[j].Token0 {
			return bytesLess(out[i].Token0, out[j].Token0)
		}
		return bytesLess(out[i].Token1, out[j].Token1)
	})
	return out
}
