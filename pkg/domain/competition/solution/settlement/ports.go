package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

// Blockchain is everything the encoder needs from the Ethereum adapter
// (C1). It is defined here, in the consuming package, and implemented by
// package blockchain; the encoder never depends on the RPC transport
// directly.
type Blockchain interface {
	Allowance(ctx context.Context, token, owner, spender eth.Address) (*big.Int, error)
	SettlementContract() eth.Address
	ReceiverIsContract(ctx context.Context, addr eth.Address) (bool, error)
	ChainID(ctx context.Context) (*big.Int, error)
	NativeBalance(ctx context.Context, addr eth.Address) (*big.Int, error)
	SolverAddress() eth.Address
}

// Simulator is everything the encoder needs from the forking-node simulator
// (C2).
type Simulator interface {
	AccessList(ctx context.Context, tx *types.Transaction, partial types.AccessList) (types.AccessList, error)
	Gas(ctx context.Context, tx *types.Transaction, accessList types.AccessList) (uint64, error)
}
