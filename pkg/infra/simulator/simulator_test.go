package simulator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestTxToCallMsgCarriesFeeCaps(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := types.NewTx(&types.DynamicFeeTx{
		To:        &to,
		Data:      []byte{0xde, 0xad},
		Value:     big.NewInt(7),
		GasFeeCap: big.NewInt(100),
		GasTipCap: big.NewInt(2),
	})

	msg := txToCallMsg(tx)

	if msg.To == nil || *msg.To != to {
		t.Errorf("To = %v, want %s", msg.To, to.Hex())
	}
	if msg.Value.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("Value = %s, want 7", msg.Value)
	}
	if msg.GasFeeCap.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("GasFeeCap = %s, want 100", msg.GasFeeCap)
	}
}

func TestToCallArgOmitsZeroFromAndNilValue(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := types.NewTx(&types.DynamicFeeTx{To: &to, Data: []byte{0x01}})
	msg := txToCallMsg(tx)

	arg := toCallArg(msg)

	if _, ok := arg["from"]; ok {
		t.Error("expected no \"from\" key for the zero address")
	}
	if data, ok := arg["data"].(hexutil.Bytes); !ok || len(data) != 1 {
		t.Errorf("data = %v, want a 1-byte hexutil.Bytes", arg["data"])
	}
}

func TestToCallArgIncludesAccessListWhenSet(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := types.NewTx(&types.DynamicFeeTx{To: &to})
	msg := txToCallMsg(tx)
	msg.AccessList = types.AccessList{{Address: to}}

	arg := toCallArg(msg)

	if _, ok := arg["accessList"]; !ok {
		t.Error("expected an \"accessList\" key when AccessList is set")
	}
}
