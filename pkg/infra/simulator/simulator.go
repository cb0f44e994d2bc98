// Package simulator talks to a forking Ethereum node to discover the
// storage slots a settlement transaction touches and the gas it costs,
// without ever broadcasting it.
package simulator

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Simulator is the concrete, RPC-backed implementation of the settlement
// package's Simulator port.
type Simulator struct {
	client *ethclient.Client
}

// New wraps an already-dialed client. It may point at the same node as the
// Blockchain adapter, or at a dedicated forking/tracing node: the
// configuration layer decides, the simulator doesn't care.
func New(client *ethclient.Client) *Simulator {
	return &Simulator{client: client}
}

type accessListResult struct {
	AccessList types.AccessList `json:"accessList"`
	GasUsed    hexutil.Uint64   `json:"gasUsed"`
	Error      string           `json:"error,omitempty"`
}

// AccessList calls eth_createAccessList, seeding the call with `partial`
// (the previous pass's discovered list, or nil on the first pass) so the
// node only needs to account for the *additional* slots a warmed access
// list causes execution to touch.
func (s *Simulator) AccessList(ctx context.Context, tx *types.Transaction, partial types.AccessList) (types.AccessList, error) {
	msg := txToCallMsg(tx)
	msg.AccessList = partial

	var result accessListResult
	if err := s.client.Client().CallContext(ctx, &result, "eth_createAccessList", toCallArg(msg), "latest"); err != nil {
		return nil, fmt.Errorf("simulator: eth_createAccessList: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("simulator: eth_createAccessList reverted: %s", result.Error)
	}
	return result.AccessList, nil
}

// Gas estimates gas for tx with the given access list pre-warmed.
func (s *Simulator) Gas(ctx context.Context, tx *types.Transaction, accessList types.AccessList) (uint64, error) {
	msg := txToCallMsg(tx)
	msg.AccessList = accessList

	gas, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("simulator: eth_estimateGas: %w", err)
	}
	return gas, nil
}

func txToCallMsg(tx *types.Transaction) ethereum.CallMsg {
	return ethereum.CallMsg{
		To:        tx.To(),
		Data:      tx.Data(),
		Value:     tx.Value(),
		GasFeeCap: tx.GasFeeCap(),
		GasTipCap: tx.GasTipCap(),
	}
}

func toCallArg(msg ethereum.CallMsg) map[string]interface{} {
	arg := map[string]interface{}{
		"to":   msg.To,
		"data": hexutil.Bytes(msg.Data),
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	if msg.AccessList != nil {
		arg["accessList"] = msg.AccessList
	}
	return arg
}
