package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
)

// Registry is the Postgres-backed signer registry. Each row binds a signer
// address to the secp256k1 public key its signatures verify against.
// Counterfactual signers gain a row on first use through EnsureDeployed; the
// address stays the same before and after because it is derived, not assigned.
type Registry struct {
	db        *gorm.DB
	authority common.Address
	nowFn     func() time.Time
}

func NewRegistry(db *gorm.DB, authority common.Address) *Registry {
	return &Registry{
		db:        db,
		authority: authority,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

type signerAccountModel struct {
	Address        string    `gorm:"column:address;primaryKey"`
	Template       string    `gorm:"column:template"`
	PublicKey      []byte    `gorm:"column:public_key"`
	DeploymentSalt string    `gorm:"column:deployment_salt"`
	DeployedAt     time.Time `gorm:"column:deployed_at"`
}

func (signerAccountModel) TableName() string { return "signer_accounts" }

func (r *Registry) Exists(ctx context.Context, signer common.Address) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&signerAccountModel{}).
		Where("address = ?", signer.Hex()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register records a signer whose verification context already exists outside
// any deployment flow. The address must be the one the public key belongs to;
// no derivation is applied here.
func (r *Registry) Register(ctx context.Context, signer common.Address, publicKey []byte) error {
	if _, err := crypto.UnmarshalPubkey(publicKey); err != nil {
		return fmt.Errorf("%w: signer public key: %v", domain.ErrInvalidInput, err)
	}
	rec := signerAccountModel{
		Address:    signer.Hex(),
		Template:   domain.SignerTemplateECDSA.Hex(),
		PublicKey:  publicKey,
		DeployedAt: r.nowFn(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// EnsureDeployed materializes the verification context a DeploymentData
// describes. The returned address is re-derived from the inputs, never read
// back from storage, so a row written by a concurrent caller cannot change the
// outcome. Losing the insert race is success: the winner wrote the same row.
func (r *Registry) EnsureDeployed(ctx context.Context, deployment domain.DeploymentData) (common.Address, error) {
	if deployment.Template != domain.SignerTemplateECDSA {
		return common.Address{}, fmt.Errorf("%w: template %s", domain.ErrUnsupportedSignerTemplate, deployment.Template.Hex())
	}
	if len(deployment.InitArgs) == 0 {
		return common.Address{}, fmt.Errorf("%w: ecdsa deployment requires a public key init arg", domain.ErrInvalidInput)
	}
	publicKey := deployment.InitArgs[0]
	if _, err := crypto.UnmarshalPubkey(publicKey); err != nil {
		return common.Address{}, fmt.Errorf("%w: deployment public key: %v", domain.ErrInvalidInput, err)
	}

	derived := domain.DeriveSignerAddress(r.authority, deployment)
	rec := signerAccountModel{
		Address:        derived.Hex(),
		Template:       deployment.Template.Hex(),
		PublicKey:      publicKey,
		DeploymentSalt: deployment.Salt.Hex(),
		DeployedAt:     r.nowFn(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.Address{}, err
		}
	}
	return derived, nil
}

// IsValidSignature verifies digest against the signer's stored public key.
// Signatures may carry a 65th recovery byte; verification uses only R and S.
// An unregistered signer is an error so callers cannot mistake "unknown" for
// "checked and rejected".
func (r *Registry) IsValidSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	var rec signerAccountModel
	if err := r.db.WithContext(ctx).Where("address = ?", signer.Hex()).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("signer %s has no verification context", signer.Hex())
		}
		return false, err
	}
	if len(signature) != 64 && len(signature) != 65 {
		return false, nil
	}
	return crypto.VerifySignature(rec.PublicKey, digest.Bytes(), signature[:64]), nil
}
