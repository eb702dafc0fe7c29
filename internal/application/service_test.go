package application

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

var (
	testAuthority    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	paymentAsset     = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	collectibleAsset = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type fixture struct {
	service       *Service
	consumptions  *fakeConsumptions
	settlements   *fakeSettlements
	attempts      *fakeAttempts
	idempotency   *fakeIdempotency
	signers       *fakeSigners
	fungibles     *fakeFungibles
	semiFungibles *fakeSemiFungibles
	hub           *fakeAssetHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	consumptions := &fakeConsumptions{rows: map[common.Hash]domain.Consumption{}}
	settlements := &fakeSettlements{records: map[common.Hash]domain.SettlementRecord{}}
	attempts := &fakeAttempts{}
	idempotency := &fakeIdempotency{rows: map[string]ports.IdempotencyRecord{}}
	signers := &fakeSigners{authority: testAuthority, keys: map[common.Address][]byte{}}
	fungibles := &fakeFungibles{balances: map[string]*big.Int{}, denyFrom: map[common.Address]bool{}}
	semiFungibles := &fakeSemiFungibles{balances: map[string]*big.Int{}, denyFrom: map[common.Address]bool{}}
	hub := &fakeAssetHub{royalties: map[common.Address]royaltyTerms{}, tokens: semiFungibles}

	svc := NewService(Dependencies{
		Config: Config{
			ChainID:        big.NewInt(31337),
			Authority:      testAuthority,
			IdempotencyTTL: 24 * time.Hour,
		},
		Consumptions:  consumptions,
		Settlements:   settlements,
		Attempts:      attempts,
		Idempotency:   idempotency,
		Signers:       signers,
		Fungibles:     fungibles,
		SemiFungibles: semiFungibles,
		Prober:        hub,
		Royalties:     hub,
		Issuer:        hub,
	})

	return &fixture{
		service:       svc,
		consumptions:  consumptions,
		settlements:   settlements,
		attempts:      attempts,
		idempotency:   idempotency,
		signers:       signers,
		fungibles:     fungibles,
		semiFungibles: semiFungibles,
		hub:           hub,
	}
}

// party is a keypair participating in settlements. For registered parties the
// address is the key's own address; for counterfactual ones it is the derived
// deployment identity.
type party struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return party{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// counterfactualParty builds a keypair whose settlement identity is derived
// from deployment data and does not exist in the registry yet.
func counterfactualParty(t *testing.T, salt byte) (party, domain.DeploymentData) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	deployment := domain.DeploymentData{
		Template: domain.SignerTemplateECDSA,
		InitArgs: [][]byte{crypto.FromECDSAPub(&key.PublicKey)},
		Salt:     common.Hash{31: salt},
	}
	addr := domain.DeriveSignerAddress(testAuthority, deployment)
	return party{key: key, addr: addr}, deployment
}

func (f *fixture) registerSigner(p party) {
	f.signers.register(p.addr, &p.key.PublicKey)
}

func (f *fixture) signOrder(t *testing.T, p party, order domain.Order) []byte {
	t.Helper()
	digest := f.service.OrderHash(order)
	sig, err := crypto.Sign(digest.Bytes(), p.key)
	if err != nil {
		t.Fatalf("sign order: %v", err)
	}
	return sig
}

func (f *fixture) fundPayment(holder common.Address, amount int64) {
	f.fungibles.credit(paymentAsset, holder, big.NewInt(amount))
}

func (f *fixture) fundCollectible(holder common.Address, tokenID, amount int64) {
	f.semiFungibles.mint(collectibleAsset, holder, big.NewInt(tokenID), big.NewInt(amount))
}

func (f *fixture) consumed(t *testing.T, order domain.Order) *domain.Consumption {
	t.Helper()
	c, err := f.consumptions.Get(context.Background(), f.service.OrderHash(order))
	if err != nil {
		t.Fatalf("read consumption: %v", err)
	}
	return c
}

// sellOrder offers three units of collectible token 7 for one hundred units
// of the payment asset.
func sellOrder(offerer common.Address, salt int64) domain.Order {
	return domain.Order{
		Offerer:           offerer,
		OfferItem:         domain.SemiFungibleItem(collectibleAsset, big.NewInt(7), big.NewInt(3)),
		ConsiderationItem: domain.FungibleItem(paymentAsset, big.NewInt(100)),
		Salt:              big.NewInt(salt),
	}
}

type fakeConsumptions struct {
	mu   sync.Mutex
	rows map[common.Hash]domain.Consumption
}

func (f *fakeConsumptions) Consume(_ context.Context, consumption domain.Consumption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[consumption.OrderHash]; ok {
		return domain.ErrAlreadyConsumed
	}
	f.rows[consumption.OrderHash] = consumption
	return nil
}

func (f *fakeConsumptions) Release(_ context.Context, orderHash common.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, orderHash)
	return nil
}

func (f *fakeConsumptions) Get(_ context.Context, orderHash common.Hash) (*domain.Consumption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[orderHash]
	if !ok {
		return nil, nil
	}
	copied := c
	return &copied, nil
}

type fakeSettlements struct {
	mu       sync.Mutex
	records  map[common.Hash]domain.SettlementRecord
	events   []ports.OutboxEvent
	failNext error
}

func (f *fakeSettlements) RecordWithOutboxTx(_ context.Context, record domain.SettlementRecord, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.records[record.OrderHash] = record
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSettlements) GetByOrderHash(_ context.Context, orderHash common.Hash) (domain.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[orderHash]
	if !ok {
		return domain.SettlementRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeSettlements) lastEvent(t *testing.T) ports.OutboxEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatal("no outbox event recorded")
	}
	return f.events[len(f.events)-1]
}

type fakeAttempts struct {
	mu   sync.Mutex
	rows []domain.SettlementAttempt
}

func (f *fakeAttempts) Insert(_ context.Context, attempt domain.SettlementAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, attempt)
	return nil
}

func (f *fakeAttempts) last(t *testing.T) domain.SettlementAttempt {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) == 0 {
		t.Fatal("no settlement attempt recorded")
	}
	return f.rows[len(f.rows)-1]
}

type fakeIdempotency struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (f *fakeIdempotency) Find(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (f *fakeIdempotency) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[key]; ok {
		return domain.ErrConflict
	}
	f.rows[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "PENDING",
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.rows[key]
	record.Key = key
	record.Status = "COMPLETED"
	record.ResponseCode = responseCode
	record.ResponseBody = responseBody
	record.UpdatedAt = at
	f.rows[key] = record
	return nil
}

// fakeSigners mirrors the registry contract: identities map to stored
// verification keys, counterfactual deployments derive before materializing,
// and signature checks run real secp256k1 verification.
type fakeSigners struct {
	mu        sync.Mutex
	authority common.Address
	keys      map[common.Address][]byte
}

func (f *fakeSigners) register(addr common.Address, pub *ecdsa.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[addr] = crypto.FromECDSAPub(pub)
}

func (f *fakeSigners) Exists(_ context.Context, signer common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[signer]
	return ok, nil
}

func (f *fakeSigners) EnsureDeployed(_ context.Context, deployment domain.DeploymentData) (common.Address, error) {
	if deployment.Template != domain.SignerTemplateECDSA {
		return common.Address{}, fmt.Errorf("%w: template %s", domain.ErrUnsupportedSignerTemplate, deployment.Template.Hex())
	}
	if len(deployment.InitArgs) == 0 {
		return common.Address{}, fmt.Errorf("%w: missing public key init arg", domain.ErrInvalidInput)
	}
	if _, err := crypto.UnmarshalPubkey(deployment.InitArgs[0]); err != nil {
		return common.Address{}, fmt.Errorf("%w: deployment public key: %v", domain.ErrInvalidInput, err)
	}
	derived := domain.DeriveSignerAddress(f.authority, deployment)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[derived] = deployment.InitArgs[0]
	return derived, nil
}

func (f *fakeSigners) IsValidSignature(_ context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	f.mu.Lock()
	key, ok := f.keys[signer]
	f.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("signer %s has no verification context", signer.Hex())
	}
	if len(signature) != 64 && len(signature) != 65 {
		return false, nil
	}
	return crypto.VerifySignature(key, digest.Bytes(), signature[:64]), nil
}

type fakeFungibles struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	denyFrom map[common.Address]bool
	calls    int
}

func fungibleKey(asset, holder common.Address) string {
	return asset.Hex() + "/" + holder.Hex()
}

func (f *fakeFungibles) credit(asset, holder common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[fungibleKey(asset, holder)] = new(big.Int).Add(f.locked(asset, holder), amount)
}

func (f *fakeFungibles) locked(asset, holder common.Address) *big.Int {
	if bal, ok := f.balances[fungibleKey(asset, holder)]; ok {
		return bal
	}
	return new(big.Int)
}

func (f *fakeFungibles) balanceOf(asset, holder common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.locked(asset, holder))
}

func (f *fakeFungibles) TransferFrom(_ context.Context, asset, from, to common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.denyFrom[from] {
		return fmt.Errorf("%w: transfers disabled for %s", domain.ErrInsufficientBalance, from.Hex())
	}
	balance := f.locked(asset, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			domain.ErrInsufficientBalance, from.Hex(), balance, asset.Hex(), amount)
	}
	f.balances[fungibleKey(asset, from)] = new(big.Int).Sub(balance, amount)
	f.balances[fungibleKey(asset, to)] = new(big.Int).Add(f.locked(asset, to), amount)
	return nil
}

type fakeSemiFungibles struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	denyFrom map[common.Address]bool
	calls    int
}

func tokenKey(asset common.Address, tokenID *big.Int, holder common.Address) string {
	return asset.Hex() + "/" + tokenID.String() + "/" + holder.Hex()
}

func (f *fakeSemiFungibles) mint(asset common.Address, holder common.Address, tokenID, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[tokenKey(asset, tokenID, holder)] = new(big.Int).Add(f.locked(asset, tokenID, holder), amount)
}

func (f *fakeSemiFungibles) locked(asset common.Address, tokenID *big.Int, holder common.Address) *big.Int {
	if bal, ok := f.balances[tokenKey(asset, tokenID, holder)]; ok {
		return bal
	}
	return new(big.Int)
}

func (f *fakeSemiFungibles) balanceOf(asset common.Address, tokenID *big.Int, holder common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.locked(asset, tokenID, holder))
}

func (f *fakeSemiFungibles) SafeTransferFrom(_ context.Context, asset, from, to common.Address, tokenID, amount *big.Int, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.denyFrom[from] {
		return fmt.Errorf("%w: transfers disabled for %s", domain.ErrInsufficientBalance, from.Hex())
	}
	balance := f.locked(asset, tokenID, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of token %s, needs %s",
			domain.ErrInsufficientBalance, from.Hex(), balance, tokenID, amount)
	}
	f.balances[tokenKey(asset, tokenID, from)] = new(big.Int).Sub(balance, amount)
	f.balances[tokenKey(asset, tokenID, to)] = new(big.Int).Add(f.locked(asset, tokenID, to), amount)
	return nil
}

type royaltyTerms struct {
	receiver common.Address
	amount   *big.Int
}

// fakeAssetHub plays the asset platform: capability probing, royalty terms
// and voucher redemption. Redeemed vouchers mint into the semi-fungible fake
// so balances stay observable.
type fakeAssetHub struct {
	mu        sync.Mutex
	royalties map[common.Address]royaltyTerms
	probeErr  error
	infoErr   error
	redeemErr error
	redeemed  []domain.Voucher
	tokens    *fakeSemiFungibles
}

func (f *fakeAssetHub) setRoyalty(asset, receiver common.Address, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.royalties[asset] = royaltyTerms{receiver: receiver, amount: big.NewInt(amount)}
}

func (f *fakeAssetHub) Supports(_ context.Context, asset common.Address, capability ports.CapabilityID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	if capability != ports.RoyaltyCapability {
		return false, nil
	}
	_, ok := f.royalties[asset]
	return ok, nil
}

func (f *fakeAssetHub) RoyaltyInfo(_ context.Context, asset common.Address, _, _ *big.Int) (common.Address, *big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return common.Address{}, nil, f.infoErr
	}
	terms, ok := f.royalties[asset]
	if !ok {
		return common.Address{}, new(big.Int), nil
	}
	return terms.receiver, new(big.Int).Set(terms.amount), nil
}

func (f *fakeAssetHub) RedeemVoucherTo(_ context.Context, asset, to common.Address, voucher domain.Voucher, _ []byte) error {
	f.mu.Lock()
	if f.redeemErr != nil {
		err := f.redeemErr
		f.mu.Unlock()
		return err
	}
	f.redeemed = append(f.redeemed, voucher)
	f.mu.Unlock()
	f.tokens.mint(asset, to, voucher.TokenID, voucher.Amount)
	return nil
}
