package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerTemplateECDSA identifies the standard secp256k1 verification context.
// For this template InitArgs[0] is the 65-byte uncompressed public key.
var SignerTemplateECDSA = crypto.Keccak256Hash([]byte("tradeforge.signer.ecdsa.v1"))

// DeploymentData fully determines a counterfactual signer: the identity is a
// pure function of these fields plus the deploying authority, so a party can
// commit to an identity before any verification context exists for it.
type DeploymentData struct {
	// Template names the verification-context code template to instantiate.
	Template common.Hash
	// InitArgs are the ordered constructor arguments for the template.
	InitArgs [][]byte
	// Salt distinguishes otherwise identical deployments.
	Salt common.Hash
}

// DeriveSignerAddress computes the deterministic identity a deployment will
// materialize to: keccak256(0xff ++ deployer ++ salt ++ template ++
// keccak256(initArgs...)), truncated to an address. Pure; materialization is a
// separate, idempotent step owned by the signer registry.
func DeriveSignerAddress(deployer common.Address, d DeploymentData) common.Address {
	initHash := crypto.Keccak256Hash(d.InitArgs...)
	sum := crypto.Keccak256Hash(
		[]byte{0xff},
		deployer.Bytes(),
		d.Salt.Bytes(),
		d.Template.Bytes(),
		initHash.Bytes(),
	)
	return common.BytesToAddress(sum.Bytes()[12:])
}
