package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/settlement/internal/application"
	"github.com/tradeforge/settlement/internal/domain"
)

// Wire payloads keep every 256-bit quantity as a decimal string and every
// byte blob as 0x-prefixed hex. JSON numbers cannot carry uint256 precision.

type itemPayload struct {
	Type    string `json:"type"`
	Asset   string `json:"asset,omitempty"`
	TokenID string `json:"token_id,omitempty"`
	Amount  string `json:"amount"`
}

func (p itemPayload) toDomain(field string) (domain.Item, error) {
	itemType, err := domain.ParseItemType(strings.TrimSpace(p.Type))
	if err != nil {
		return domain.Item{}, fmt.Errorf("%s.type must be one of NATIVE, FUNGIBLE, NON_FUNGIBLE, SEMI_FUNGIBLE", field)
	}
	var asset common.Address
	if strings.TrimSpace(p.Asset) != "" {
		asset, err = parseAddress(field+".asset", p.Asset)
		if err != nil {
			return domain.Item{}, err
		}
	}
	tokenID, err := parseBigInt(field+".token_id", p.TokenID)
	if err != nil {
		return domain.Item{}, err
	}
	amount, err := parseBigInt(field+".amount", p.Amount)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.Item{Type: itemType, Asset: asset, TokenID: tokenID, Amount: amount}, nil
}

type orderPayload struct {
	Offerer           string      `json:"offerer"`
	OfferItem         itemPayload `json:"offer_item"`
	ConsiderationItem itemPayload `json:"consideration_item"`
	Salt              string      `json:"salt"`
	Expiration        uint64      `json:"expiration,omitempty"`
}

func (p orderPayload) toDomain() (domain.Order, error) {
	offerer, err := parseAddress("order.offerer", p.Offerer)
	if err != nil {
		return domain.Order{}, err
	}
	offerItem, err := p.OfferItem.toDomain("order.offer_item")
	if err != nil {
		return domain.Order{}, err
	}
	considerationItem, err := p.ConsiderationItem.toDomain("order.consideration_item")
	if err != nil {
		return domain.Order{}, err
	}
	salt, err := parseBigInt("order.salt", p.Salt)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		Offerer:           offerer,
		OfferItem:         offerItem,
		ConsiderationItem: considerationItem,
		Salt:              salt,
		Expiration:        p.Expiration,
	}, nil
}

type voucherPayload struct {
	Receiver string `json:"receiver"`
	TokenID  string `json:"token_id,omitempty"`
	Amount   string `json:"amount"`
	Salt     string `json:"salt"`
}

func (p voucherPayload) toDomain() (domain.Voucher, error) {
	receiver, err := parseAddress("voucher.receiver", p.Receiver)
	if err != nil {
		return domain.Voucher{}, err
	}
	tokenID, err := parseBigInt("voucher.token_id", p.TokenID)
	if err != nil {
		return domain.Voucher{}, err
	}
	amount, err := parseBigInt("voucher.amount", p.Amount)
	if err != nil {
		return domain.Voucher{}, err
	}
	salt, err := parseBigInt("voucher.salt", p.Salt)
	if err != nil {
		return domain.Voucher{}, err
	}
	return domain.Voucher{Receiver: receiver, TokenID: tokenID, Amount: amount, Salt: salt}, nil
}

type deploymentPayload struct {
	Template string   `json:"template"`
	InitArgs []string `json:"init_args,omitempty"`
	Salt     string   `json:"salt"`
}

func (p deploymentPayload) toDomain() (domain.DeploymentData, error) {
	template, err := parseHash("offerer_deployment.template", p.Template)
	if err != nil {
		return domain.DeploymentData{}, err
	}
	salt, err := parseHash("offerer_deployment.salt", p.Salt)
	if err != nil {
		return domain.DeploymentData{}, err
	}
	initArgs := make([][]byte, 0, len(p.InitArgs))
	for i, arg := range p.InitArgs {
		decoded, err := parseHexBytes(fmt.Sprintf("offerer_deployment.init_args[%d]", i), arg)
		if err != nil {
			return domain.DeploymentData{}, err
		}
		initArgs = append(initArgs, decoded)
	}
	return domain.DeploymentData{Template: template, InitArgs: initArgs, Salt: salt}, nil
}

type fulfillOrderPayload struct {
	Offerer   string       `json:"offerer"`
	Order     orderPayload `json:"order"`
	Signature string       `json:"signature"`
}

func (p fulfillOrderPayload) toRequest() (application.FulfillOrderRequest, error) {
	offerer, err := parseAddress("offerer", p.Offerer)
	if err != nil {
		return application.FulfillOrderRequest{}, err
	}
	order, err := p.Order.toDomain()
	if err != nil {
		return application.FulfillOrderRequest{}, err
	}
	signature, err := parseHexBytes("signature", p.Signature)
	if err != nil {
		return application.FulfillOrderRequest{}, err
	}
	return application.FulfillOrderRequest{Offerer: offerer, Order: order, Signature: signature}, nil
}

type cancelOrderPayload struct {
	Order     orderPayload `json:"order"`
	Signature string       `json:"signature"`
}

func (p cancelOrderPayload) toRequest() (application.CancelOrderRequest, error) {
	order, err := p.Order.toDomain()
	if err != nil {
		return application.CancelOrderRequest{}, err
	}
	signature, err := parseHexBytes("signature", p.Signature)
	if err != nil {
		return application.CancelOrderRequest{}, err
	}
	return application.CancelOrderRequest{Order: order, Signature: signature}, nil
}

type fulfillWithVoucherPayload struct {
	Voucher           voucherPayload     `json:"voucher"`
	VoucherSignature  string             `json:"voucher_signature"`
	Order             orderPayload       `json:"order"`
	OrderSignature    string             `json:"order_signature"`
	OffererDeployment *deploymentPayload `json:"offerer_deployment,omitempty"`
}

func (p fulfillWithVoucherPayload) toRequest() (application.FulfillOrderWithVoucherRequest, error) {
	voucher, err := p.Voucher.toDomain()
	if err != nil {
		return application.FulfillOrderWithVoucherRequest{}, err
	}
	voucherSignature, err := parseHexBytes("voucher_signature", p.VoucherSignature)
	if err != nil {
		return application.FulfillOrderWithVoucherRequest{}, err
	}
	order, err := p.Order.toDomain()
	if err != nil {
		return application.FulfillOrderWithVoucherRequest{}, err
	}
	orderSignature, err := parseHexBytes("order_signature", p.OrderSignature)
	if err != nil {
		return application.FulfillOrderWithVoucherRequest{}, err
	}
	req := application.FulfillOrderWithVoucherRequest{
		Voucher:          voucher,
		VoucherSignature: voucherSignature,
		Order:            order,
		OrderSignature:   orderSignature,
	}
	if p.OffererDeployment != nil {
		deployment, err := p.OffererDeployment.toDomain()
		if err != nil {
			return application.FulfillOrderWithVoucherRequest{}, err
		}
		req.OffererDeployment = &deployment
	}
	return req, nil
}

func (h *Handler) fulfillOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "fulfill_order")
		return
	}

	var payload fulfillOrderPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "fulfill_order", err)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		writeValidationError(r.Context(), w, "fulfill_order", err)
		return
	}

	res, err := h.service.FulfillOrder(r.Context(), caller, req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeMappedError(r.Context(), w, "fulfill_order", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "cancel_order")
		return
	}

	var payload cancelOrderPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "cancel_order", err)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		writeValidationError(r.Context(), w, "cancel_order", err)
		return
	}

	res, err := h.service.CancelOrder(r.Context(), caller, req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeMappedError(r.Context(), w, "cancel_order", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) fulfillOrderWithVoucher(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "fulfill_order_with_voucher")
		return
	}

	var payload fulfillWithVoucherPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "fulfill_order_with_voucher", err)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		writeValidationError(r.Context(), w, "fulfill_order_with_voucher", err)
		return
	}

	res, err := h.service.FulfillOrderWithVoucher(r.Context(), caller, req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeMappedError(r.Context(), w, "fulfill_order_with_voucher", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	orderHash, err := parseHash("order_hash", chi.URLParam(r, "order_hash"))
	if err != nil {
		writeValidationError(r.Context(), w, "order_status", err)
		return
	}

	res, err := h.service.OrderStatus(r.Context(), orderHash)
	if err != nil {
		writeMappedError(r.Context(), w, "order_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
