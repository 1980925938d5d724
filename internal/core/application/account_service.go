package application

import (
	"context"
	"errors"
	"math/big"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// AccountService covers the indirections between accounts: temporary
// aliases, settlement managers, capability scoped agents, delegators and the
// shop and bridge transfers they authorize.
type AccountService struct {
	svc *Service
}

func NewAccountService(svc *Service) *AccountService {
	return &AccountService{svc}
}

// IssueTemporaryAccount hands out a random alias of account, valid for the
// configured ttl or until a payment is opened with it.
func (s *AccountService) IssueTemporaryAccount(
	ctx context.Context, account common.Address, sig []byte,
) (*domain.TemporaryAccount, error) {
	nonce, err := s.svc.chain.NonceOf(ctx, account)
	if err != nil {
		return nil, chainError(err)
	}
	if err := s.verify(s.svc.codec.AccountMessage(account), sig, account, nonce); err != nil {
		return nil, err
	}

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	now := s.svc.now()
	tmp := domain.TemporaryAccount{
		TemporaryAccount: ethcrypto.PubkeyToAddress(key.PublicKey),
		RealAccount:      account,
		Nonce:            nonce,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.svc.cfg.TemporaryAccountTTL),
	}
	// A signature buys a single alias.
	if err := s.svc.repo.TemporaryAccounts().Add(ctx, tmp); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrStaleNonce.Wrapf("signature already used")
		}
		return nil, storeError(err)
	}
	return &tmp, nil
}

// ResolveTemporaryAccount returns the real account behind an alias that is
// neither expired nor used.
func (s *AccountService) ResolveTemporaryAccount(
	ctx context.Context, temporaryAccount common.Address,
) (common.Address, error) {
	tmp, err := s.svc.repo.TemporaryAccounts().Get(ctx, temporaryAccount)
	if err != nil {
		return common.Address{}, storeError(err)
	}
	if tmp.Consumed {
		return common.Address{}, domain.ErrTemporaryAccountNotFound.Wrapf("alias already used")
	}
	if tmp.IsExpired(s.svc.now()) {
		return common.Address{}, domain.ErrExpired.Wrapf("temporary account %s", temporaryAccount.Hex())
	}
	return tmp.RealAccount, nil
}

// resolveLenient treats an address unknown as alias as a real account.
func (s *AccountService) resolveLenient(ctx context.Context, account common.Address) (common.Address, error) {
	if _, err := s.svc.repo.TemporaryAccounts().Get(ctx, account); err != nil {
		if errors.Is(err, domain.ErrTemporaryAccountNotFound) {
			return account, nil
		}
		return common.Address{}, storeError(err)
	}
	return s.ResolveTemporaryAccount(ctx, account)
}

func (s *AccountService) verify(msg signature.Message, sig []byte, signer common.Address, nonce *big.Int) error {
	if err := s.svc.codec.Verify(msg, sig, signer, nonce); err != nil {
		if errors.Is(err, signature.ErrStaleNonce) {
			return domain.ErrStaleNonce
		}
		return domain.ErrInvalidSignature
	}
	return nil
}

func (s *AccountService) SetSettlementManager(
	ctx context.Context, shopId, managerId common.Hash, sig []byte,
) (common.Hash, error) {
	if err := s.svc.checkShopID(shopId); err != nil {
		return common.Hash{}, err
	}
	if shopId == managerId {
		return common.Hash{}, domain.ErrInvalidSettlement.Wrapf("a shop cannot manage itself")
	}
	shop, err := s.svc.getShop(ctx, shopId)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := s.svc.getShop(ctx, managerId); err != nil {
		if errors.Is(err, domain.ErrShopNotFound) {
			return common.Hash{}, domain.ErrInvalidSettlement.Wrapf("unknown manager %s", managerId.Hex())
		}
		return common.Hash{}, err
	}

	signer, err := s.svc.verifyShopSigner(
		ctx, sig,
		func(common.Address) signature.Message {
			return s.svc.codec.SetSettlementManagerMessage(shopId, managerId)
		},
		shop.Account, shop.Delegator,
	)
	if err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.SetSettlementManager(ctx, shopId, managerId, signer, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	if err := s.svc.repo.Settlements().SetManager(ctx, shopId, managerId); err != nil {
		return common.Hash{}, storeError(err)
	}
	log.Debugf("shop %s settled by %s", shopId.Hex(), managerId.Hex())
	return txHash, nil
}

func (s *AccountService) RemoveSettlementManager(
	ctx context.Context, shopId common.Hash, sig []byte,
) (common.Hash, error) {
	shop, err := s.svc.getShop(ctx, shopId)
	if err != nil {
		return common.Hash{}, err
	}
	managerId, err := s.svc.repo.Settlements().GetManager(ctx, shopId)
	if err != nil {
		return common.Hash{}, storeError(err)
	}
	if managerId == (common.Hash{}) {
		return common.Hash{}, domain.ErrInvalidSettlement.Wrapf("shop %s has no manager", shopId.Hex())
	}

	signer, err := s.svc.verifyShopSigner(
		ctx, sig,
		func(common.Address) signature.Message {
			return s.svc.codec.RemoveSettlementManagerMessage(shopId)
		},
		shop.Account, shop.Delegator,
	)
	if err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.RemoveSettlementManager(ctx, shopId, signer, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	if err := s.svc.repo.Settlements().RemoveManager(ctx, shopId); err != nil {
		return common.Hash{}, storeError(err)
	}
	return txHash, nil
}

// GetSettlementManager returns the zero hash for a shop without manager.
func (s *AccountService) GetSettlementManager(ctx context.Context, shopId common.Hash) (common.Hash, error) {
	managerId, err := s.svc.repo.Settlements().GetManager(ctx, shopId)
	if err != nil {
		return common.Hash{}, storeError(err)
	}
	return managerId, nil
}

func (s *AccountService) GetSettlementClientLength(ctx context.Context, managerId common.Hash) (int, error) {
	clients, err := s.svc.repo.Settlements().GetClients(ctx, managerId)
	if err != nil {
		return 0, storeError(err)
	}
	return len(clients), nil
}

// GetSettlementClients returns the clients in [start, end), end being clamped
// to the number of clients.
func (s *AccountService) GetSettlementClients(
	ctx context.Context, managerId common.Hash, start, end int,
) ([]common.Hash, error) {
	if start < 0 || end < start {
		return nil, domain.ErrValidation.Wrapf("invalid range [%d, %d)", start, end)
	}
	clients, err := s.svc.repo.Settlements().GetClients(ctx, managerId)
	if err != nil {
		return nil, storeError(err)
	}
	if end > len(clients) {
		end = len(clients)
	}
	if start >= end {
		return []common.Hash{}, nil
	}
	return clients[start:end], nil
}

// RegisterAgent binds agent to a single capability of account. A zero agent
// unregisters it.
func (s *AccountService) RegisterAgent(
	ctx context.Context, kind domain.AgentKind, account, agent common.Address, sig []byte,
) (common.Hash, error) {
	if agent == account {
		return common.Hash{}, domain.ErrValidation.Wrapf("an account cannot be its own agent")
	}
	nonce, err := s.svc.chain.NonceOf(ctx, account)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	if err := s.verify(s.svc.codec.RegisterAgentMessage(account, agent), sig, account, nonce); err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.RegisterAgent(ctx, kind, account, agent, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	if err := s.svc.repo.Agents().Save(ctx, domain.Agent{
		Kind:      kind,
		Account:   account,
		Agent:     agent,
		TxHash:    txHash,
		UpdatedAt: s.svc.now(),
	}); err != nil {
		return common.Hash{}, storeError(err)
	}
	return txHash, nil
}

// GetAgent reads the agent from the ledger, zero when none is registered.
func (s *AccountService) GetAgent(
	ctx context.Context, kind domain.AgentKind, account common.Address,
) (common.Address, error) {
	return s.svc.agentOf(ctx, kind, account)
}

// CreateDelegator generates a key the relay keeps, sealed, on behalf of the
// shop account. It only takes effect once saved on chain.
func (s *AccountService) CreateDelegator(
	ctx context.Context, shopId common.Hash, account common.Address, sig []byte,
) (common.Address, error) {
	shop, err := s.svc.getShop(ctx, shopId)
	if err != nil {
		return common.Address{}, err
	}
	if shop.Account != account {
		return common.Address{}, domain.ErrInvalidAccount.Wrapf("%s does not own shop %s", account.Hex(), shopId.Hex())
	}
	nonce, err := s.svc.chain.ShopNonceOf(ctx, account)
	if err != nil {
		return common.Address{}, chainError(err)
	}
	if err := s.verify(s.svc.codec.ShopAccountMessage(shopId, account), sig, account, nonce); err != nil {
		return common.Address{}, err
	}

	key, address, err := s.svc.keys.NewKey()
	if err != nil {
		return common.Address{}, domain.ErrInternal.Wrap(err)
	}
	sealed, err := s.svc.keys.Encrypt(key)
	if err != nil {
		return common.Address{}, domain.ErrInternal.Wrap(err)
	}
	if err := s.svc.repo.Delegators().Save(ctx, domain.Delegator{
		Account:      account,
		Address:      address,
		EncryptedKey: sealed,
		CreatedAt:    s.svc.now(),
	}); err != nil {
		return common.Address{}, storeError(err)
	}
	return address, nil
}

// SaveDelegator registers on chain the delegator created by the relay, or
// clears it when delegator is zero.
func (s *AccountService) SaveDelegator(
	ctx context.Context, shopId common.Hash, account, delegator common.Address, sig []byte,
) (common.Hash, error) {
	shop, err := s.svc.getShop(ctx, shopId)
	if err != nil {
		return common.Hash{}, err
	}
	if shop.Account != account {
		return common.Hash{}, domain.ErrInvalidAccount.Wrapf("%s does not own shop %s", account.Hex(), shopId.Hex())
	}
	if delegator != (common.Address{}) {
		stored, err := s.svc.repo.Delegators().Get(ctx, account)
		if err != nil {
			return common.Hash{}, storeError(err)
		}
		if stored.Address != delegator {
			return common.Hash{}, domain.ErrDelegatorMismatch
		}
	}

	nonce, err := s.svc.chain.ShopNonceOf(ctx, account)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	msg := s.svc.codec.ChangeDelegatorMessage(shopId, account, delegator)
	if err := s.verify(msg, sig, account, nonce); err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.ChangeDelegator(ctx, shopId, delegator, account, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	return txHash, nil
}

// Refund moves the refundable amount of a shop to its account. The signer is
// the shop account or its refund agent.
func (s *AccountService) Refund(
	ctx context.Context, shopId common.Hash, signer common.Address, amount *big.Int, sig []byte,
) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, domain.ErrValidation.Wrapf("amount must be positive")
	}
	shop, err := s.svc.getShop(ctx, shopId)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.checkRefundSigner(ctx, shop, signer); err != nil {
		return common.Hash{}, err
	}
	nonce, err := s.svc.chain.ShopNonceOf(ctx, signer)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	if err := s.verify(s.svc.codec.ShopRefundMessage(shopId, amount), sig, signer, nonce); err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.Refund(ctx, shopId, amount, signer, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	return txHash, nil
}

// CollectSettlement gathers the refundable amounts of clients into their
// manager. Every client must currently be settled by the manager.
func (s *AccountService) CollectSettlement(
	ctx context.Context, managerId common.Hash, signer common.Address, clients []common.Hash, sig []byte,
) (common.Hash, error) {
	if len(clients) == 0 {
		return common.Hash{}, domain.ErrValidation.Wrapf("missing clients")
	}
	manager, err := s.svc.getShop(ctx, managerId)
	if err != nil {
		return common.Hash{}, err
	}
	for _, client := range clients {
		current, err := s.svc.repo.Settlements().GetManager(ctx, client)
		if err != nil {
			return common.Hash{}, storeError(err)
		}
		if current != managerId {
			return common.Hash{}, domain.ErrInvalidSettlement.Wrapf(
				"shop %s is not a client of %s", client.Hex(), managerId.Hex(),
			)
		}
	}
	if err := s.checkRefundSigner(ctx, manager, signer); err != nil {
		return common.Hash{}, err
	}
	nonce, err := s.svc.chain.ShopNonceOf(ctx, signer)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	msg := s.svc.codec.CollectSettlementMessage(managerId, clients)
	if err := s.verify(msg, sig, signer, nonce); err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.CollectSettlement(ctx, managerId, clients, signer, sig)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	return txHash, nil
}

func (s *AccountService) checkRefundSigner(ctx context.Context, shop *domain.Shop, signer common.Address) error {
	if signer == shop.Account {
		return nil
	}
	agent, err := s.svc.agentOf(ctx, domain.AgentRefund, shop.Account)
	if err != nil {
		return err
	}
	if agent == (common.Address{}) || agent != signer {
		return domain.ErrAgentNotRegistered
	}
	return nil
}

type BridgeRequest struct {
	Account common.Address
	Amount  *big.Int
	// Expiry is the unix time after which the signed transfer is void.
	Expiry    int64
	Signature []byte
}

// WithdrawViaBridge sends tokens of account through the bridge. The transfer
// is signed by the account or by its withdrawal agent.
func (s *AccountService) WithdrawViaBridge(ctx context.Context, req BridgeRequest) (common.Hash, error) {
	if err := s.checkBridgeRequest(req); err != nil {
		return common.Hash{}, err
	}
	agent, err := s.svc.agentOf(ctx, domain.AgentWithdrawal, req.Account)
	if err != nil {
		return common.Hash{}, err
	}

	msg := s.svc.codec.TransferMessage(
		s.svc.chain.TokenAddress(), req.Account, s.svc.chain.BridgeAddress(), req.Amount, req.Expiry,
	)
	signer, err := s.svc.verifyLedgerSigner(
		ctx, req.Signature, func(common.Address) signature.Message { return msg }, req.Account, agent,
	)
	if err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.WithdrawViaBridge(ctx, req.Account, req.Amount, req.Expiry, signer, req.Signature)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	return txHash, nil
}

// DepositViaBridge moves tokens of account into the ledger. Only the account
// itself can sign it.
func (s *AccountService) DepositViaBridge(ctx context.Context, req BridgeRequest) (common.Hash, error) {
	if err := s.checkBridgeRequest(req); err != nil {
		return common.Hash{}, err
	}
	nonce, err := s.svc.chain.NonceOf(ctx, req.Account)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	msg := s.svc.codec.TransferMessage(
		s.svc.chain.TokenAddress(), req.Account, s.svc.chain.BridgeAddress(), req.Amount, req.Expiry,
	)
	if err := s.verify(msg, req.Signature, req.Account, nonce); err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.svc.chain.DepositViaBridge(ctx, req.Account, req.Amount, req.Expiry, req.Signature)
	if err != nil {
		return common.Hash{}, chainError(err)
	}
	return txHash, nil
}

func (s *AccountService) checkBridgeRequest(req BridgeRequest) error {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return domain.ErrValidation.Wrapf("amount must be positive")
	}
	if req.Expiry <= s.svc.now().Unix() {
		return domain.ErrExpired.Wrapf("transfer expired at %d", req.Expiry)
	}
	return nil
}
