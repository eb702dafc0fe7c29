package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Typed-data domain constants. Changing either invalidates every signature
// ever produced against this authority.
const (
	TypedDomainName    = "TradeForge Settlement"
	TypedDomainVersion = "1"
)

// Pre-computed type hashes. The type strings are canonical: field order and
// spelling are load-bearing.
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	typedDomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// Item(uint8 itemType,address asset,uint256 tokenId,uint256 amount)
	itemTypeHash = crypto.Keccak256Hash([]byte(
		"Item(uint8 itemType,address asset,uint256 tokenId,uint256 amount)",
	))

	// Order carries two nested Items; the nested type string is appended per
	// the typed-data encoding rules.
	orderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(address offerer,Item offerItem,Item considerationItem,uint256 salt,uint256 expiration)" +
			"Item(uint8 itemType,address asset,uint256 tokenId,uint256 amount)",
	))

	// Voucher(address receiver,uint256 tokenId,uint256 amount,uint256 salt)
	voucherTypeHash = crypto.Keccak256Hash([]byte(
		"Voucher(address receiver,uint256 tokenId,uint256 amount,uint256 salt)",
	))
)

var (
	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	uint8Type, _   = abi.NewType("uint8", "", nil)
)

// TypedDomain scopes every hash to one authority on one chain, so a signature
// can never be replayed against a different deployment of the same engine.
type TypedDomain struct {
	Name               string
	Version            string
	ChainID            *big.Int
	VerifyingAuthority common.Address

	separator common.Hash
}

// NewTypedDomain builds the domain for this authority and pre-computes its
// separator hash.
func NewTypedDomain(chainID *big.Int, authority common.Address) *TypedDomain {
	d := &TypedDomain{
		Name:               TypedDomainName,
		Version:            TypedDomainVersion,
		ChainID:            chainID,
		VerifyingAuthority: authority,
	}
	d.separator = d.computeSeparator()
	return d
}

func (d *TypedDomain) computeSeparator() common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}
	encoded, err := arguments.Pack(
		typedDomainTypeHash,
		crypto.Keccak256Hash([]byte(d.Name)),
		crypto.Keccak256Hash([]byte(d.Version)),
		d.ChainID,
		d.VerifyingAuthority,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// Separator returns the pre-computed domain separator hash.
func (d *TypedDomain) Separator() common.Hash {
	return d.separator
}

// SignHash produces the final digest to be signed for a struct hash:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash).
func (d *TypedDomain) SignHash(structHash common.Hash) common.Hash {
	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, d.separator.Bytes()...)
	data = append(data, structHash.Bytes()...)
	return crypto.Keccak256Hash(data)
}

// StructHash computes the canonical hash of the item for nesting inside order
// hashes. Fields that do not apply to the variant are hashed as zero.
func (i Item) StructHash() common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: uint8Type},   // itemType
		{Type: addressType}, // asset
		{Type: uint256Type}, // tokenId
		{Type: uint256Type}, // amount
	}
	encoded, err := arguments.Pack(
		itemTypeHash,
		uint8(i.Type),
		i.Asset,
		i.TokenIDOrZero(),
		i.AmountOrZero(),
	)
	if err != nil {
		panic("failed to encode item struct: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// StructHash computes the canonical order hash. This is the order's identity
// for consumption tracking; it is then domain-bound via TypedDomain.SignHash
// before signature checks.
func (o Order) StructHash() common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // offerer
		{Type: bytes32Type}, // offerItem struct hash
		{Type: bytes32Type}, // considerationItem struct hash
		{Type: uint256Type}, // salt
		{Type: uint256Type}, // expiration
	}
	encoded, err := arguments.Pack(
		orderTypeHash,
		o.Offerer,
		o.OfferItem.StructHash(),
		o.ConsiderationItem.StructHash(),
		saltOrZero(o.Salt),
		new(big.Int).SetUint64(o.Expiration),
	)
	if err != nil {
		panic("failed to encode order struct: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// StructHash computes the canonical voucher hash. The issuer signs this (after
// its own domain binding); this service never verifies voucher signatures but
// forwards them with the redemption call.
func (v Voucher) StructHash() common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // receiver
		{Type: uint256Type}, // tokenId
		{Type: uint256Type}, // amount
		{Type: uint256Type}, // salt
	}
	encoded, err := arguments.Pack(
		voucherTypeHash,
		v.Receiver,
		saltOrZero(v.TokenID),
		saltOrZero(v.Amount),
		saltOrZero(v.Salt),
	)
	if err != nil {
		panic("failed to encode voucher struct: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

func saltOrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
