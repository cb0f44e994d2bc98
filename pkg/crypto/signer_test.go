package crypto

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestGenerateKeyAndFromPrivateKeyHexAgree(t *testing.T) {
	s1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	s2, err := FromPrivateKeyHex(s1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("FromPrivateKeyHex() error: %v", err)
	}
	if s1.Address() != s2.Address() {
		t.Errorf("addresses differ after round-tripping through hex: %s != %s", s1.Address(), s2.Address())
	}
}

func TestSignAndVerifySignature(t *testing.T) {
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	hash := make([]byte, 32)
	hash[0] = 0xaa

	sig, err := s.Sign(hash)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !VerifySignature(s.Address(), hash, sig) {
		t.Error("VerifySignature() = false, want true for a matching address and hash")
	}
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	if VerifySignature(other, hash, sig) {
		t.Error("VerifySignature() = true for an unrelated address, want false")
	}
}

func TestRecoverAddressMatchesSigner(t *testing.T) {
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	hash := make([]byte, 32)
	hash[0] = 0xbb
	sig, err := s.Sign(hash)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		t.Fatalf("RecoverAddress() error: %v", err)
	}
	if recovered != s.Address() {
		t.Errorf("RecoverAddress() = %s, want %s", recovered.Hex(), s.Address().Hex())
	}
}

func TestSignatureRSVRoundTrip(t *testing.T) {
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	hash := make([]byte, 32)
	hash[0] = 0xcc
	sig, err := s.Sign(hash)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	r, sVal, v, err := SignatureToRSV(sig)
	if err != nil {
		t.Fatalf("SignatureToRSV() error: %v", err)
	}
	rebuilt := RSVToSignature(r, sVal, v)
	if !bytesEqual(rebuilt, sig) {
		t.Errorf("RSVToSignature(SignatureToRSV(sig)) = %x, want %x", rebuilt, sig)
	}
}

func TestSignTxProducesARecoverableSender(t *testing.T) {
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	chainID := big.NewInt(1)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		To:        &to,
		Value:     big.NewInt(0),
		Gas:       21000,
		GasFeeCap: big.NewInt(1),
		GasTipCap: big.NewInt(1),
	})

	signed, err := s.SignTx(tx, chainID)
	if err != nil {
		t.Fatalf("SignTx() error: %v", err)
	}

	sender, err := types.Sender(types.NewLondonSigner(chainID), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != s.Address() {
		t.Errorf("recovered sender = %s, want %s", sender.Hex(), s.Address().Hex())
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
