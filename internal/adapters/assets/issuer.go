package assets

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tradeforge/settlement/internal/domain"
)

// Issuer redeems signed mint grants through the asset hub. The hub checks the
// voucher signature against the asset's issuer key and enforces its own
// single-use rule; settlement only directs where the mint lands.
type Issuer struct {
	client *Client
}

func NewIssuer(client *Client) *Issuer {
	return &Issuer{client: client}
}

type redemptionRequest struct {
	Asset     string `json:"asset"`
	To        string `json:"to"`
	Receiver  string `json:"receiver"`
	TokenID   string `json:"token_id"`
	Amount    string `json:"amount"`
	Salt      string `json:"salt"`
	Signature string `json:"signature"`
}

func (i *Issuer) RedeemVoucherTo(ctx context.Context, asset, to common.Address, voucher domain.Voucher, signature []byte) error {
	req := redemptionRequest{
		Asset:     asset.Hex(),
		To:        to.Hex(),
		Receiver:  voucher.Receiver.Hex(),
		TokenID:   voucher.TokenID.String(),
		Amount:    voucher.Amount.String(),
		Salt:      voucher.Salt.String(),
		Signature: hexutil.Encode(signature),
	}
	return i.client.postJSON(ctx, "/issuer/v1/redemptions", req, nil)
}
