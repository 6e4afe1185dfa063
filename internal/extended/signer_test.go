package extended

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

func testOrderRequest() OrderRequest {
	return OrderRequest{
		Market:   "BTC-USD",
		Side:     SideBuy,
		Qty:      dec("0.01"),
		Price:    dec("50000"),
		ExpiryMs: 1_700_003_600_000,
	}
}

func TestEncodeOrderSettlementDeterministic(t *testing.T) {
	req := testOrderRequest()
	b1, err := encodeOrderSettlement("test.extended.exchange", 101, req, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	b2, err := encodeOrderSettlement("test.extended.exchange", 101, req, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected deterministic encoding")
	}

	var decoded map[string]any
	if err := msgpack.Unmarshal(b1, &decoded); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if decoded["market"] != "BTC-USD" || decoded["side"] != "BUY" {
		t.Fatalf("unexpected settlement fields: %v", decoded)
	}
	if decoded["qty"] != "0.01" || decoded["price"] != "50000" {
		t.Fatalf("unexpected amounts: %v", decoded)
	}
	if fmt.Sprint(decoded["vault"]) != "101" {
		t.Fatalf("unexpected vault: %v", decoded["vault"])
	}
	if fmt.Sprint(decoded["nonce"]) != "1700000000000" {
		t.Fatalf("unexpected nonce: %v", decoded["nonce"])
	}
}

func TestEncodeOrderSettlementRejectsIncomplete(t *testing.T) {
	req := testOrderRequest()
	req.Market = ""
	if _, err := encodeOrderSettlement("d", 1, req, 1); err == nil {
		t.Fatalf("expected error for missing market")
	}
	req = testOrderRequest()
	req.Side = ""
	if _, err := encodeOrderSettlement("d", 1, req, 1); err == nil {
		t.Fatalf("expected error for missing side")
	}
}

func TestSignOrderVerifiable(t *testing.T) {
	signer, err := NewSigner(testPrivateKey, "test.extended.exchange")
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	req := testOrderRequest()
	nonce := uint64(1_700_000_000_000)

	s1, err := signer.SignOrder(req, 101, nonce)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	s2, err := signer.SignOrder(req, 101, nonce)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected deterministic signature, got %+v vs %+v", s1, s2)
	}
	if s1.StarkKey != signer.PublicKey() {
		t.Fatalf("stark key %q, want %q", s1.StarkKey, signer.PublicKey())
	}
	if s1.CollateralPosition != "101" {
		t.Fatalf("collateral position %q", s1.CollateralPosition)
	}

	payload, err := encodeOrderSettlement("test.extended.exchange", 101, req, nonce)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	digest := crypto.Keccak256(payload)
	r, err := hexutil.Decode(s1.Signature.R)
	if err != nil {
		t.Fatalf("decode r: %v", err)
	}
	s, err := hexutil.Decode(s1.Signature.S)
	if err != nil {
		t.Fatalf("decode s: %v", err)
	}
	pub, err := hexutil.Decode(signer.PublicKey())
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if !crypto.VerifySignature(pub, digest, append(r, s...)) {
		t.Fatalf("signature does not verify against the account key")
	}
}

func TestSignOrderChangesWithNonce(t *testing.T) {
	signer, err := NewSigner(testPrivateKey, "test.extended.exchange")
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	req := testOrderRequest()
	s1, err := signer.SignOrder(req, 101, 1)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	s2, err := signer.SignOrder(req, 101, 2)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if s1.Signature == s2.Signature {
		t.Fatalf("different nonces produced the same signature")
	}
}

func TestDerivePublicKey(t *testing.T) {
	derived, err := derivePublicKey("0x" + testPrivateKey)
	if err != nil {
		t.Fatalf("derive error: %v", err)
	}
	direct, err := derivePublicKey(testPrivateKey)
	if err != nil {
		t.Fatalf("derive error: %v", err)
	}
	if derived != direct {
		t.Fatalf("prefix handling changed the key: %q vs %q", derived, direct)
	}
	// Compressed secp256k1 point: 33 bytes, 0x-prefixed hex.
	if len(derived) != 2+66 {
		t.Fatalf("unexpected key length %d: %q", len(derived), derived)
	}
	if _, err := derivePublicKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
