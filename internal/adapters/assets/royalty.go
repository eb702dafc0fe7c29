package assets

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/ports"
)

// Oracle answers capability probes and royalty queries from the asset hub's
// registry API. A transport failure surfaces as an error rather than a
// negative answer; only the hub may say an asset lacks a capability.
type Oracle struct {
	client *Client
}

func NewOracle(client *Client) *Oracle {
	return &Oracle{client: client}
}

func (o *Oracle) Supports(ctx context.Context, asset common.Address, capability ports.CapabilityID) (bool, error) {
	var out struct {
		Supported bool `json:"supported"`
	}
	q := url.Values{}
	q.Set("capability", "0x"+capability.String())
	if err := o.client.getJSON(ctx, "/registry/v1/assets/"+asset.Hex()+"/capabilities", q, &out); err != nil {
		return false, err
	}
	return out.Supported, nil
}

func (o *Oracle) RoyaltyInfo(ctx context.Context, asset common.Address, tokenID, salePrice *big.Int) (common.Address, *big.Int, error) {
	var out struct {
		Receiver string `json:"receiver"`
		Amount   string `json:"amount"`
	}
	q := url.Values{}
	q.Set("token_id", tokenID.String())
	q.Set("sale_price", salePrice.String())
	if err := o.client.getJSON(ctx, "/registry/v1/assets/"+asset.Hex()+"/royalty", q, &out); err != nil {
		return common.Address{}, nil, err
	}

	amount := new(big.Int)
	if raw := strings.TrimSpace(out.Amount); raw != "" {
		parsed, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return common.Address{}, nil, fmt.Errorf("parse royalty amount %q: not a base-10 integer", out.Amount)
		}
		amount = parsed
	}
	return common.HexToAddress(out.Receiver), amount, nil
}
