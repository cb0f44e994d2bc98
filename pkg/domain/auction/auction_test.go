package auction

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctiondriver/driver/pkg/domain/eth"
)

func TestTimeout(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Auction{Deadline: now.Add(5 * time.Second)}

	d, err := a.Timeout(now, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 4*time.Second {
		t.Errorf("Timeout() = %s, want 4s", d)
	}

	_, err = a.Timeout(now, 5*time.Second)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Errorf("Timeout() with buffer consuming the whole window = %v, want ErrDeadlineExceeded", err)
	}

	past := Auction{Deadline: now.Add(-time.Second)}
	if _, err := past.Timeout(now, 0); !errors.Is(err, ErrDeadlineExceeded) {
		t.Errorf("Timeout() on an already-past deadline = %v, want ErrDeadlineExceeded", err)
	}
}

func TestTrusted(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := Auction{Tokens: map[eth.Address]TokenInfo{token: {Trusted: true}}}

	if !a.Trusted(token) {
		t.Error("expected token to be trusted")
	}
	if a.Trusted(common.HexToAddress("0x2222222222222222222222222222222222222222")) {
		t.Error("expected an unknown token to default to untrusted")
	}
}

func TestOrderValidate(t *testing.T) {
	market := Order{Kind: Market, SurplusFee: big.NewInt(1)}
	if err := market.Validate(); err == nil {
		t.Error("expected a surplus fee on a Market order to be rejected")
	}

	limit := Order{Kind: Limit, SurplusFee: big.NewInt(1)}
	if err := limit.Validate(); err != nil {
		t.Errorf("unexpected error validating a limit order's surplus fee: %v", err)
	}
}

func TestBuysEth(t *testing.T) {
	o := Order{Buy: eth.Asset{Token: eth.NativeToken}}
	if !o.BuysEth() {
		t.Error("expected BuysEth to be true for the native token sentinel")
	}
	o.Buy.Token = common.HexToAddress("0x1111111111111111111111111111111111111111")
	if o.BuysEth() {
		t.Error("expected BuysEth to be false for a non-native token")
	}
}
