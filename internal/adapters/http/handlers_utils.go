package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// parseAddress rejects anything that is not a 20-byte hex address up front.
// common.HexToAddress alone would silently coerce malformed input to a valid
// address.
func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s must be a 0x-prefixed 20-byte hex address", field)
	}
	return common.HexToAddress(raw), nil
}

func parseHash(field, raw string) (common.Hash, error) {
	raw = strings.TrimSpace(raw)
	decoded, err := hexutil.Decode(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s must be 0x-prefixed hex", field)
	}
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must encode exactly 32 bytes", field)
	}
	return common.BytesToHash(decoded), nil
}

// parseBigInt reads an unsigned base-10 decimal string. The empty string maps
// to zero so optional numeric fields can be omitted from request bodies.
func parseBigInt(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return n, nil
}

func parseHexBytes(field, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	decoded, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be 0x-prefixed hex", field)
	}
	return decoded, nil
}
