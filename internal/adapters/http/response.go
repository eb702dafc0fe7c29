package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradeforge/settlement/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// mapDomainError translates domain sentinels into the wire contract. 409 marks
// consumption races, 422 marks orders that can never settle as presented, 403
// is reserved for a non-offerer attempting a cancel.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrUnauthorizedCanceller):
		return http.StatusForbidden, "UNAUTHORIZED_CANCELLER", "only the offerer may cancel an order"
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return http.StatusConflict, "ALREADY_CONSUMED", "order already consumed"
	case errors.Is(err, domain.ErrIdempotencyConflict), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnprocessableEntity, "INVALID_SIGNATURE", "order signature rejected"
	case errors.Is(err, domain.ErrUnsupportedItemType):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_ITEM_TYPE", err.Error()
	case errors.Is(err, domain.ErrVoucherOrderMismatch):
		return http.StatusUnprocessableEntity, "VOUCHER_ORDER_MISMATCH", err.Error()
	case errors.Is(err, domain.ErrVoucherRedeemNotSupported):
		return http.StatusUnprocessableEntity, "VOUCHER_REDEEM_NOT_SUPPORTED", err.Error()
	case errors.Is(err, domain.ErrOrderExpired):
		return http.StatusUnprocessableEntity, "ORDER_EXPIRED", "order validity window has passed"
	case errors.Is(err, domain.ErrRoyaltyExceedsSalePrice):
		return http.StatusUnprocessableEntity, "ROYALTY_EXCEEDS_SALE_PRICE", err.Error()
	case errors.Is(err, domain.ErrDeploymentIdentityMismatch):
		return http.StatusUnprocessableEntity, "DEPLOYMENT_IDENTITY_MISMATCH", err.Error()
	case errors.Is(err, domain.ErrUnsupportedSignerTemplate):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_SIGNER_TEMPLATE", err.Error()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logFailure(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logFailure(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}

func writeMissingBearerError(ctx context.Context, w http.ResponseWriter, operation string) {
	code := "UNAUTHORIZED"
	msg := "missing bearer token"
	logFailure(ctx, operation, http.StatusUnauthorized, code, msg, nil)
	writeError(w, http.StatusUnauthorized, code, msg)
}
