package application

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
)

// validateAndConsume is the authorization gate shared by every entry point:
// prove the signer authorized this exact hash, then spend the hash. Ordering
// matters: verification failures must leave the ledger untouched, and the
// consumption insert is the single atomic point after which the order is
// spent.
func (s *Service) validateAndConsume(
	ctx context.Context,
	signer common.Address,
	orderHash common.Hash,
	signature []byte,
	deployment *domain.DeploymentData,
	kind string,
) error {
	if deployment != nil {
		if err := s.ensureSignerDeployed(ctx, signer, *deployment); err != nil {
			return err
		}
	}

	ok, err := s.signers.IsValidSignature(ctx, signer, orderHash, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if !ok {
		return domain.ErrInvalidSignature
	}

	return s.consumptions.Consume(ctx, domain.Consumption{
		OrderHash:  orderHash,
		Kind:       kind,
		ConsumedAt: s.nowFn(),
	})
}

// ensureSignerDeployed materializes a counterfactual verification context.
// Derivation is checked before any side effect: deployment data that does not
// derive to the claimed signer is rejected with nothing recorded, and the
// registry's own re-derivation must agree or the whole operation fails.
func (s *Service) ensureSignerDeployed(ctx context.Context, signer common.Address, deployment domain.DeploymentData) error {
	exists, err := s.signers.Exists(ctx, signer)
	if err != nil {
		return fmt.Errorf("check signer registration: %w", err)
	}
	if exists {
		return nil
	}

	derived := domain.DeriveSignerAddress(s.cfg.Authority, deployment)
	if derived != signer {
		return fmt.Errorf("%w: derived %s, claimed %s",
			domain.ErrDeploymentIdentityMismatch, derived.Hex(), signer.Hex())
	}

	materialized, err := s.signers.EnsureDeployed(ctx, deployment)
	if err != nil {
		return fmt.Errorf("materialize signer: %w", err)
	}
	if materialized != signer {
		return fmt.Errorf("%w: materialized %s, claimed %s",
			domain.ErrDeploymentIdentityMismatch, materialized.Hex(), signer.Hex())
	}
	return nil
}
