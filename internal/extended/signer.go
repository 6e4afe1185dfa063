package extended

import (
	"crypto/ecdsa"
	"errors"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces the settlement signature for order payloads: the
// canonical encoding of the settlement fields is hashed with Keccak-256
// and signed with the account's L2 key. Only r and s travel on the wire;
// the stark key identifies the signer.
type Signer struct {
	privKey *ecdsa.PrivateKey
	pubKey  string
	domain  string
}

func NewSigner(hexKey, domain string) (*Signer, error) {
	clean := normalizeHexKey(hexKey)
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}
	return &Signer{
		privKey: key,
		pubKey:  hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)),
		domain:  domain,
	}, nil
}

func (s *Signer) PublicKey() string { return s.pubKey }

func (s *Signer) SignOrder(req OrderRequest, vault int64, nonce uint64) (settlement, error) {
	payload, err := encodeOrderSettlement(s.domain, vault, req, nonce)
	if err != nil {
		return settlement{}, err
	}
	digest := crypto.Keccak256(payload)
	sig, err := crypto.Sign(digest, s.privKey)
	if err != nil {
		return settlement{}, err
	}
	if len(sig) != 65 {
		return settlement{}, errors.New("unexpected signature length")
	}
	return settlement{
		Signature: starkSignature{
			R: hexutil.Encode(sig[:32]),
			S: hexutil.Encode(sig[32:64]),
		},
		StarkKey:           s.pubKey,
		CollateralPosition: strconv.FormatInt(vault, 10),
	}, nil
}

func derivePublicKey(hexKey string) (string, error) {
	clean := normalizeHexKey(hexKey)
	if clean == "" {
		return "", errors.New("private key is required")
	}
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)), nil
}

func normalizeHexKey(s string) string {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "0x")
	return strings.ToLower(clean)
}
