package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

// Service is the settlement engine. All entry points fail closed: every
// mutation either completes with a settlement record or leaves no surviving
// partial state behind.
type Service struct {
	cfg           Config
	typedDomain   *domain.TypedDomain
	consumptions  ports.ConsumptionRepository
	settlements   ports.SettlementRepository
	attempts      ports.AttemptRepository
	idempotency   ports.IdempotencyRepository
	signers       ports.SignerRegistry
	fungibles     ports.FungibleLedger
	semiFungibles ports.SemiFungibleLedger
	prober        ports.CapabilityProber
	royalties     ports.RoyaltyPolicy
	issuer        ports.VoucherIssuer
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Consumptions  ports.ConsumptionRepository
	Settlements   ports.SettlementRepository
	Attempts      ports.AttemptRepository
	Idempotency   ports.IdempotencyRepository
	Signers       ports.SignerRegistry
	Fungibles     ports.FungibleLedger
	SemiFungibles ports.SemiFungibleLedger
	Prober        ports.CapabilityProber
	Royalties     ports.RoyaltyPolicy
	Issuer        ports.VoucherIssuer
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:           deps.Config,
		typedDomain:   domain.NewTypedDomain(deps.Config.ChainID, deps.Config.Authority),
		consumptions:  deps.Consumptions,
		settlements:   deps.Settlements,
		attempts:      deps.Attempts,
		idempotency:   deps.Idempotency,
		signers:       deps.Signers,
		fungibles:     deps.Fungibles,
		semiFungibles: deps.SemiFungibles,
		prober:        deps.Prober,
		royalties:     deps.Royalties,
		issuer:        deps.Issuer,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// OrderHash computes the canonical, domain-separated hash that identifies an
// order for signature checks and consumption tracking alike.
func (s *Service) OrderHash(order domain.Order) common.Hash {
	return s.typedDomain.SignHash(order.StructHash())
}

// replayIdempotent returns the stored response for a completed request with
// the same key and payload. A key reused with a different payload, or one
// whose first attempt is still in flight, is a conflict.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := s.idempotency.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.Status == "COMPLETED" && rec.RequestHash == requestHash && rec.ExpiresAt.After(s.nowFn()) {
			return rec.ResponseBody, nil
		}
		return nil, domain.ErrIdempotencyConflict
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
	}
	return nil, nil
}

func (s *Service) completeIdempotent(ctx context.Context, key string, response any) {
	if key == "" {
		return
	}
	body, _ := json.Marshal(response)
	_ = s.idempotency.Complete(ctx, key, 200, body, s.nowFn())
}

// recordFailure stores failed settlement context for audit. Best effort: a
// failed insert never masks the settlement error itself.
func (s *Service) recordFailure(ctx context.Context, orderHash common.Hash, caller common.Address, operation, reason string) {
	if err := s.attempts.Insert(ctx, domain.SettlementAttempt{
		OrderHash:     orderHash,
		Caller:        caller,
		Operation:     operation,
		Status:        "FAILED",
		FailureReason: reason,
		AttemptAt:     s.nowFn(),
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to persist settlement attempt",
			"service", "Settlement-Service",
			"module", "application",
			"layer", "application",
			"operation", "record_settlement_failure",
			"outcome", "failure",
			"reason", reason,
			"error", err,
		)
	}
}

// hashRequest computes deterministic request fingerprint for idempotency conflict detection.
func hashRequest(req any) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// failureReason flattens an error into the audit vocabulary stored with
// failed attempts.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return "ALREADY_CONSUMED"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, domain.ErrDeploymentIdentityMismatch):
		return "DEPLOYMENT_IDENTITY_MISMATCH"
	case errors.Is(err, domain.ErrUnsupportedSignerTemplate):
		return "UNSUPPORTED_SIGNER_TEMPLATE"
	case errors.Is(err, domain.ErrUnsupportedItemType):
		return "UNSUPPORTED_ITEM_TYPE"
	case errors.Is(err, domain.ErrVoucherOrderMismatch):
		return "VOUCHER_ORDER_MISMATCH"
	case errors.Is(err, domain.ErrVoucherRedeemNotSupported):
		return "VOUCHER_REDEEM_NOT_SUPPORTED"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, domain.ErrOrderExpired):
		return "ORDER_EXPIRED"
	case errors.Is(err, domain.ErrRoyaltyExceedsSalePrice):
		return "ROYALTY_EXCEEDS_SALE_PRICE"
	case errors.Is(err, domain.ErrUnauthorizedCanceller):
		return "UNAUTHORIZED_CANCELLER"
	default:
		return "INTERNAL_ERROR"
	}
}
