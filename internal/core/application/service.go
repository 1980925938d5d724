package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid service config")

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Config holds the timing and policy knobs shared by every component.
type Config struct {
	PaymentTimeout      time.Duration
	ApprovalTimeout     time.Duration
	ForcedCloseTimeout  time.Duration
	TemporaryAccountTTL time.Duration
	TaskMaxAttempts     int
	StaleNonceWindow    int
	AllowedShopIDPrefix string

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (c Config) validate() error {
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("%w: payment timeout must be positive", ErrInvalidConfig)
	}
	if c.ApprovalTimeout < 0 || c.ApprovalTimeout > c.PaymentTimeout {
		return fmt.Errorf("%w: approval timeout must be within the payment timeout", ErrInvalidConfig)
	}
	if c.ForcedCloseTimeout < 0 {
		return fmt.Errorf("%w: forced close timeout must not be negative", ErrInvalidConfig)
	}
	if c.TemporaryAccountTTL <= 0 {
		return fmt.Errorf("%w: temporary account ttl must be positive", ErrInvalidConfig)
	}
	if c.TaskMaxAttempts <= 0 {
		return fmt.Errorf("%w: task max attempts must be positive", ErrInvalidConfig)
	}
	if c.StaleNonceWindow < 0 {
		return fmt.Errorf("%w: stale nonce window must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Service is the context shared by the payment, account and shop services,
// the reconciler and the watcher. It owns no status, all of it lives in the
// repositories.
type Service struct {
	BuildInfo BuildInfo

	cfg      Config
	repo     ports.RepoManager
	chain    ports.ChainClient
	oracle   ports.RateOracle
	notifier ports.Notifier
	keys     ports.KeyStore
	metrics  ports.Metrics
	codec    *signature.Codec
	locker   *locker

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

func NewService(
	buildInfo BuildInfo,
	cfg Config,
	repo ports.RepoManager,
	chain ports.ChainClient,
	oracle ports.RateOracle,
	notifier ports.Notifier,
	keys ports.KeyStore,
	metrics ports.Metrics,
) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if repo == nil || chain == nil || oracle == nil || notifier == nil || keys == nil {
		return nil, fmt.Errorf("%w: missing dependency", ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		BuildInfo: buildInfo,
		cfg:       cfg,
		repo:      repo,
		chain:     chain,
		oracle:    oracle,
		notifier:  notifier,
		keys:      keys,
		metrics:   metrics,
		codec:     signature.NewCodec(chain.ChainID(), cfg.StaleNonceWindow),
		locker:    newLocker(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) Codec() *signature.Codec {
	return s.codec
}

// Stop cancels the background confirmations and notifications and waits for
// them to return.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Service) now() time.Time {
	return s.cfg.Clock()
}

// async runs fn in background, bound to the service lifetime.
func (s *Service) async(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Service) notify(event ports.CallbackEvent) {
	s.async(func(ctx context.Context) {
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.WithError(err).Warnf("failed to deliver %s callback", event.Type)
		}
	})
}

func (s *Service) checkShopID(shopId common.Hash) error {
	if s.cfg.AllowedShopIDPrefix == "" {
		return nil
	}
	prefix := strings.ToLower(strings.TrimPrefix(s.cfg.AllowedShopIDPrefix, "0x"))
	if !strings.HasPrefix(strings.TrimPrefix(shopId.Hex(), "0x"), prefix) {
		return domain.ErrValidation.Wrapf("shop id %s is not allowed", shopId.Hex())
	}
	return nil
}

func (s *Service) getShop(ctx context.Context, shopId common.Hash) (*domain.Shop, error) {
	shop, err := s.chain.ShopOf(ctx, shopId)
	if err != nil {
		if errors.Is(err, domain.ErrShopNotFound) {
			return nil, err
		}
		return nil, chainError(err)
	}
	return shop, nil
}

type nonceReader func(ctx context.Context, account common.Address) (*big.Int, error)

// verifySigner checks sig against each candidate in turn, each bound to its
// own fresh nonce, and returns the first that signed it. A signature that only
// matches an older nonce yields ErrStaleNonce.
func (s *Service) verifySigner(
	ctx context.Context, sig []byte, nonceOf nonceReader,
	message func(signer common.Address) signature.Message, candidates ...common.Address,
) (common.Address, error) {
	stale := false
	for _, candidate := range candidates {
		if candidate == (common.Address{}) {
			continue
		}
		nonce, err := nonceOf(ctx, candidate)
		if err != nil {
			return common.Address{}, chainError(err)
		}
		err = s.codec.Verify(message(candidate), sig, candidate, nonce)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, signature.ErrStaleNonce) {
			stale = true
		}
	}
	if stale {
		return common.Address{}, domain.ErrStaleNonce
	}
	return common.Address{}, domain.ErrInvalidSignature
}

func (s *Service) verifyLedgerSigner(
	ctx context.Context, sig []byte,
	message func(signer common.Address) signature.Message, candidates ...common.Address,
) (common.Address, error) {
	return s.verifySigner(ctx, sig, s.chain.NonceOf, message, candidates...)
}

func (s *Service) verifyShopSigner(
	ctx context.Context, sig []byte,
	message func(signer common.Address) signature.Message, candidates ...common.Address,
) (common.Address, error) {
	return s.verifySigner(ctx, sig, s.chain.ShopNonceOf, message, candidates...)
}

// agentOf returns the zero address when no agent is registered.
func (s *Service) agentOf(ctx context.Context, kind domain.AgentKind, account common.Address) (common.Address, error) {
	agent, err := s.chain.AgentOf(ctx, kind, account)
	if err != nil {
		return common.Address{}, chainError(err)
	}
	return agent, nil
}

// chainError keeps a revert reported by the chain client distinct from any
// other chain failure.
func chainError(err error) error {
	if errors.Is(err, domain.ErrChainReverted) {
		return domain.AsError(err)
	}
	return domain.ErrChain.Wrap(err)
}

// storeError maps repository conflicts to the error returned to callers.
func storeError(err error) error {
	if errors.Is(err, domain.ErrStatusConflict) {
		return domain.ErrAlreadyDecided.Wrap(err)
	}
	var e *domain.Error
	if errors.As(err, &e) {
		return err
	}
	return domain.ErrInternal.Wrap(err)
}

type noopMetrics struct{}

func (noopMetrics) PaymentTransition(domain.PaymentStatus) {}
func (noopMetrics) SweepItem(string, error)               {}
