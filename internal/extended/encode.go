package extended

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeOrderSettlement produces the canonical byte encoding of the fields
// covered by the settlement signature. Key order is fixed; two payloads
// with the same fields always encode to the same bytes.
func encodeOrderSettlement(domain string, vault int64, req OrderRequest, nonce uint64) ([]byte, error) {
	if req.Market == "" {
		return nil, errors.New("market is required")
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return nil, errors.New("side is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(8); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("domain"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(domain); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("vault"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(vault); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("market"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(req.Market); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("side"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(string(req.Side)); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("qty"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(req.Qty.String()); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("price"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(req.Price.String()); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("expiry"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(req.ExpiryMs); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("nonce"); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
