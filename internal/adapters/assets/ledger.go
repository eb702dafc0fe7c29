package assets

import (
	"context"
	"encoding/base64"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger drives balance movements through the asset hub's ledger API. It
// implements both the fungible and semi-fungible transfer ports; the hub
// decides per asset which book the movement lands in.
type Ledger struct {
	client *Client
}

func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

type transferRequest struct {
	Asset  string `json:"asset"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (l *Ledger) TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	req := transferRequest{
		Asset:  asset.Hex(),
		From:   from.Hex(),
		To:     to.Hex(),
		Amount: amount.String(),
	}
	return l.client.postJSON(ctx, "/ledger/v1/transfers", req, nil)
}

type tokenTransferRequest struct {
	Asset   string `json:"asset"`
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
	Amount  string `json:"amount"`
	Data    string `json:"data,omitempty"`
}

func (l *Ledger) SafeTransferFrom(ctx context.Context, asset, from, to common.Address, tokenID, amount *big.Int, data []byte) error {
	req := tokenTransferRequest{
		Asset:   asset.Hex(),
		From:    from.Hex(),
		To:      to.Hex(),
		TokenID: tokenID.String(),
		Amount:  amount.String(),
	}
	if len(data) > 0 {
		req.Data = base64.StdEncoding.EncodeToString(data)
	}
	return l.client.postJSON(ctx, "/ledger/v1/token-transfers", req, nil)
}
