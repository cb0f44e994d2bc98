package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestWrap(t *testing.T) {
	weth := WETHAddress{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")

	if got := Wrap(NativeToken, weth); got != weth.Address {
		t.Errorf("Wrap(native) = %s, want %s", got.Hex(), weth.Address.Hex())
	}
	if got := Wrap(token, weth); got != token {
		t.Errorf("Wrap(token) = %s, want unchanged %s", got.Hex(), token.Hex())
	}
	if got := Wrap(weth.Address, weth); got != weth.Address {
		t.Errorf("Wrap(weth) = %s, want idempotent %s", got.Hex(), weth.Address.Hex())
	}
}

func TestRequiredApproval(t *testing.T) {
	spender := Spender{
		Token:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}

	required := Required{Allowance{Spender: spender, Amount: big.NewInt(100)}}
	existing := Existing{Allowance{Spender: spender, Amount: big.NewInt(50)}}

	approval, needed := required.Approval(existing)
	if !needed {
		t.Fatal("expected an approval to be required")
	}
	if approval.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("approval amount = %s, want 100", approval.Amount)
	}

	sufficient := Existing{Allowance{Spender: spender, Amount: big.NewInt(100)}}
	if _, needed := required.Approval(sufficient); needed {
		t.Error("expected no approval when existing allowance already covers the requirement")
	}

	wrongSpender := Existing{Allowance{Spender: Spender{Token: spender.Token}, Amount: big.NewInt(0)}}
	if _, needed := required.Approval(wrongSpender); needed {
		t.Error("expected no approval against an allowance for a different spender")
	}
}

func TestApprovalMax(t *testing.T) {
	spender := Spender{Token: common.HexToAddress("0x1111111111111111111111111111111111111111")}
	max := Approval{Allowance{Spender: spender, Amount: big.NewInt(1)}}.Max()

	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if max.Amount.Cmp(want) != 0 {
		t.Errorf("Max() = %s, want 2^256-1", max.Amount)
	}
}
