package blockchain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNewWrapsConfiguredAddresses(t *testing.T) {
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	solver := common.HexToAddress("0x4444444444444444444444444444444444444444")

	e := New(nil, contract, solver)

	if e.SettlementContract() != contract {
		t.Errorf("SettlementContract() = %s, want %s", e.SettlementContract().Hex(), contract.Hex())
	}
	if e.SolverAddress() != solver {
		t.Errorf("SolverAddress() = %s, want %s", e.SolverAddress().Hex(), solver.Hex())
	}
	if e.Client() != nil {
		t.Error("Client() should return the client passed to New (nil here)")
	}
}

func TestAllowanceABIParsesAtInit(t *testing.T) {
	// allowanceABI is built in an init() that panics on a malformed
	// definition; reaching this line without a panic is the assertion.
	if _, ok := allowanceABI.Methods["allowance"]; !ok {
		t.Error("allowanceABI missing the \"allowance\" method")
	}
}
