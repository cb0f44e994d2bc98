// Package blockchain adapts a go-ethereum JSON-RPC client to the narrow
// Blockchain port the settlement encoder depends on.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

const erc20AllowanceABIJSON = `[{
  "name": "allowance",
  "type": "function",
  "stateMutability": "view",
  "inputs": [{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
  "outputs": [{"name":"","type":"uint256"}]
}]`

var allowanceABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20AllowanceABIJSON))
	if err != nil {
		panic(fmt.Sprintf("blockchain: parse allowance abi: %v", err))
	}
	allowanceABI = parsed
}

// Ethereum is the concrete, RPC-backed Blockchain port implementation.
type Ethereum struct {
	client             *ethclient.Client
	settlementContract eth.Address
	solverAddress      eth.Address
}

// New wraps an already-dialed ethclient around the settlement contract and
// the solver's own submitting address.
func New(client *ethclient.Client, settlementContract, solverAddress eth.Address) *Ethereum {
	return &Ethereum{client: client, settlementContract: settlementContract, solverAddress: solverAddress}
}

// SettlementContract returns the configured settlement contract address.
func (e *Ethereum) SettlementContract() eth.Address { return e.settlementContract }

// SolverAddress returns the address the solver submits settlements from.
func (e *Ethereum) SolverAddress() eth.Address { return e.solverAddress }

// Allowance reads token.allowance(owner, spender) via eth_call.
func (e *Ethereum) Allowance(ctx context.Context, token, owner, spender eth.Address) (*big.Int, error) {
	data, err := allowanceABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("blockchain: pack allowance call: %w", err)
	}
	result, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("blockchain: allowance call: %w", err)
	}
	out, err := allowanceABI.Unpack("allowance", result)
	if err != nil {
		return nil, fmt.Errorf("blockchain: unpack allowance result: %w", err)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("blockchain: unexpected allowance result type")
	}
	return amount, nil
}

// ReceiverIsContract reports whether addr has code deployed. The encoder's
// first access-list pass uses it to pick the native-token receivers that
// are contracts.
func (e *Ethereum) ReceiverIsContract(ctx context.Context, addr eth.Address) (bool, error) {
	code, err := e.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("blockchain: code at %s: %w", addr, err)
	}
	return len(code) > 0, nil
}

// ChainID returns the connected chain's ID.
func (e *Ethereum) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := e.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("blockchain: chain id: %w", err)
	}
	return id, nil
}

// NativeBalance reads an account's native-token balance.
func (e *Ethereum) NativeBalance(ctx context.Context, addr eth.Address) (*big.Int, error) {
	balance, err := e.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("blockchain: balance of %s: %w", addr, err)
	}
	return balance, nil
}

// Client exposes the underlying ethclient for callers that need it
// directly without re-dialing.
func (e *Ethereum) Client() *ethclient.Client { return e.client }
