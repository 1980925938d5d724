package application

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/acc-network/relay/utils"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	pointCurrency       = "point"
	feeRateDenominator  = 10000
	confirmPollInterval = time.Second
)

type OpenPaymentRequest struct {
	PurchaseID string
	Amount     *big.Int
	Currency   string
	ShopID     common.Hash
	// Account is the temporary account shown by the user to the point of sale.
	Account common.Address
}

// PaymentInfo previews the points charged for an amount.
type PaymentInfo struct {
	Account    common.Address
	Amount     *big.Int
	Currency   string
	FeeRate    float64
	PaidPoint  *big.Int
	FeePoint   *big.Int
	TotalPoint *big.Int
}

// PaymentEvent is the data sent along with payment callbacks.
type PaymentEvent struct {
	PaymentID     string `json:"paymentId"`
	PurchaseID    string `json:"purchaseId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ShopID        string `json:"shopId"`
	Account       string `json:"account"`
	PaidPoint     string `json:"paidPoint"`
	FeePoint      string `json:"feePoint"`
	TotalPoint    string `json:"totalPoint"`
	PaymentStatus int    `json:"paymentStatus"`
	TxHash        string `json:"txHash,omitempty"`
}

func newPaymentEvent(p domain.Payment) PaymentEvent {
	event := PaymentEvent{
		PaymentID:     p.PaymentID.Hex(),
		PurchaseID:    p.PurchaseID,
		Amount:        bigString(p.Amount),
		Currency:      p.Currency,
		ShopID:        p.ShopID.Hex(),
		Account:       p.Account.Hex(),
		PaidPoint:     bigString(p.PaidPoint),
		FeePoint:      bigString(p.FeePoint),
		TotalPoint:    bigString(p.TotalPoint),
		PaymentStatus: int(p.Status),
	}
	if p.TxHash != (common.Hash{}) {
		event.TxHash = p.TxHash.Hex()
	}
	return event
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PaymentService runs the hash-locked payment state machine of both the new
// and the cancel leg.
type PaymentService struct {
	svc *Service
}

func NewPaymentService(svc *Service) *PaymentService {
	return &PaymentService{svc}
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentId common.Hash) (*domain.Payment, error) {
	payment, err := s.svc.repo.Payments().Get(ctx, paymentId)
	if err != nil {
		return nil, storeError(err)
	}
	return payment, nil
}

// GetPaymentInfo previews the points a payment of amount would cost. account
// may be either a temporary or a real account.
func (s *PaymentService) GetPaymentInfo(
	ctx context.Context, account common.Address, amount *big.Int, currency string,
) (*PaymentInfo, error) {
	realAccount, err := NewAccountService(s.svc).resolveLenient(ctx, account)
	if err != nil {
		return nil, err
	}
	currency = strings.ToLower(currency)
	paid, fee, feeRate, err := s.points(ctx, amount, currency)
	if err != nil {
		return nil, err
	}
	return &PaymentInfo{
		Account:    realAccount,
		Amount:     amount,
		Currency:   currency,
		FeeRate:    float64(feeRate) / feeRateDenominator,
		PaidPoint:  paid,
		FeePoint:   fee,
		TotalPoint: new(big.Int).Add(paid, fee),
	}, nil
}

func (s *PaymentService) points(
	ctx context.Context, amount *big.Int, currency string,
) (paid, fee *big.Int, feeRate uint32, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, 0, domain.ErrValidation.Wrapf("amount must be positive")
	}
	paid, err = s.svc.oracle.ConvertCurrency(ctx, amount, currency, pointCurrency)
	if err != nil {
		return nil, nil, 0, domain.ErrValidation.Wrap(err)
	}
	feeRate, err = s.svc.chain.PaymentFeeRate(ctx)
	if err != nil {
		return nil, nil, 0, chainError(err)
	}
	fee = new(big.Int).Mul(paid, big.NewInt(int64(feeRate)))
	fee.Div(fee, big.NewInt(feeRateDenominator))
	return paid, fee, feeRate, nil
}

// OpenNewPayment resolves the temporary account and records a payment waiting
// for the approval of its owner.
func (s *PaymentService) OpenNewPayment(ctx context.Context, req OpenPaymentRequest) (*domain.Payment, error) {
	if err := s.svc.checkShopID(req.ShopID); err != nil {
		return nil, err
	}
	if req.PurchaseID == "" {
		return nil, domain.ErrValidation.Wrapf("missing purchase id")
	}

	unlock, ok := s.svc.locker.tryLock("purchase:" + req.PurchaseID)
	if !ok {
		return nil, domain.ErrDuplicateRequest.Wrapf("purchase %s is being opened", req.PurchaseID)
	}
	defer unlock()

	payments := s.svc.repo.Payments()
	previous, err := payments.GetByPurchase(ctx, req.PurchaseID)
	if err != nil {
		return nil, storeError(err)
	}
	for _, p := range previous {
		if p.BlocksPurchase() {
			return nil, domain.ErrDuplicateRequest.Wrapf("payment %s", p.PaymentID.Hex())
		}
	}

	accounts := NewAccountService(s.svc)
	realAccount, err := accounts.ResolveTemporaryAccount(ctx, req.Account)
	if err != nil {
		return nil, domain.ErrInvalidAccount.Wrap(err)
	}

	shop, err := s.svc.getShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	if shop.Status != domain.ShopStatusActive {
		return nil, domain.ErrInvalidState.Wrapf("shop %s is %s", shop.ShopID.Hex(), shop.Status)
	}

	currency := strings.ToLower(req.Currency)
	paid, fee, _, err := s.points(ctx, req.Amount, currency)
	if err != nil {
		return nil, err
	}

	nonce, err := s.svc.chain.NonceOf(ctx, realAccount)
	if err != nil {
		return nil, chainError(err)
	}
	salt, err := signature.RandomHash()
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	secret, secretLock, err := signature.NewSecret()
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}

	now := s.svc.now()
	payment := domain.Payment{
		PaymentID:  signature.PaymentID(realAccount, nonce, salt),
		PurchaseID: req.PurchaseID,
		Account:    realAccount,
		ShopID:     req.ShopID,
		Currency:   currency,
		Amount:     new(big.Int).Set(req.Amount),
		PaidPoint:  paid,
		FeePoint:   fee,
		TotalPoint: new(big.Int).Add(paid, fee),
		Secret:     secret,
		SecretLock: secretLock,
		Status:     domain.PaymentOpenedNew,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.svc.cfg.PaymentTimeout),
		UpdatedAt:  now,
	}

	// The store rejects a second open payment for the purchase, the alias is
	// only spent once the payment is in.
	if err := payments.Add(ctx, payment); err != nil {
		return nil, storeError(err)
	}
	if err := s.svc.repo.TemporaryAccounts().Consume(ctx, req.Account); err != nil {
		if delErr := payments.Delete(ctx, payment.PaymentID); delErr != nil {
			log.WithError(delErr).Warnf(
				"failed to drop payment %s after alias rejection", payment.PaymentID.Hex(),
			)
		}
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, domain.ErrInvalidAccount.Wrapf("temporary account already used")
		}
		return nil, storeError(err)
	}
	s.svc.metrics.PaymentTransition(payment.Status)

	log.WithField("paymentId", payment.PaymentID.Hex()).Debugf(
		"payment opened for purchase %s", payment.PurchaseID,
	)
	return &payment, nil
}

// ApproveNewPayment applies the owner decision on an open payment. Approving
// a payment whose transaction failed re-submits it.
func (s *PaymentService) ApproveNewPayment(
	ctx context.Context, paymentId common.Hash, approval bool, sig []byte,
) (*domain.Payment, error) {
	unlock, ok := s.svc.locker.tryLock(paymentId.Hex())
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("payment %s is being processed", paymentId.Hex())
	}
	defer unlock()

	payment, err := s.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}

	switch {
	case payment.Status == domain.PaymentOpenedNew:
		if !s.svc.now().Before(payment.ExpiresAt) {
			return nil, domain.ErrExpired.Wrapf("payment %s", paymentId.Hex())
		}
	case payment.Status.IsResubmittable() && !payment.Status.IsCancel():
		if !approval {
			return nil, domain.ErrAlreadyDecided
		}
	default:
		return nil, domain.ErrAlreadyDecided
	}

	msg := s.svc.codec.NewPaymentMessage(
		payment.Account, payment.PaymentID, payment.PurchaseID,
		payment.Amount, payment.Currency, payment.ShopID,
	)
	if _, err := s.svc.verifyLedgerSigner(
		ctx, sig, func(common.Address) signature.Message { return msg }, payment.Account,
	); err != nil {
		return nil, err
	}

	if !approval {
		expected := payment.Status
		if err := payment.Transition(domain.PaymentDeniedNew, s.svc.now()); err != nil {
			return nil, err
		}
		if err := s.svc.repo.Payments().Update(ctx, *payment, expected); err != nil {
			return nil, storeError(err)
		}
		s.svc.metrics.PaymentTransition(payment.Status)
		s.svc.notify(ports.CallbackEvent{
			Type:    ports.CallbackPayNew,
			Code:    ports.CallbackCodeDenied,
			Message: "The payment was denied by the user",
			Data:    newPaymentEvent(*payment),
		})
		return payment, nil
	}

	payment.Signature = sig
	return s.submitNew(ctx, payment)
}

// submitNew sends the open transaction of the new leg. The caller holds the
// payment lock.
func (s *PaymentService) submitNew(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	expected := payment.Status
	txHash, txErr := s.svc.chain.OpenNewLoyaltyPayment(ctx, domain.NewPaymentRequest{
		PaymentID:  payment.PaymentID,
		PurchaseID: payment.PurchaseID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		ShopID:     payment.ShopID,
		Account:    payment.Account,
		Signature:  payment.Signature,
		SecretLock: payment.SecretLock,
	})
	return s.recordSubmission(
		ctx, payment, expected, txHash, txErr,
		domain.PaymentApprovedNewSentTx, domain.PaymentApprovedNewFailedTx,
	)
}

func (s *PaymentService) recordSubmission(
	ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus,
	txHash common.Hash, txErr error, sent, failed domain.PaymentStatus,
) (*domain.Payment, error) {
	now := s.svc.now()
	if payment.ApprovedAt.IsZero() || !payment.Status.IsResubmittable() {
		payment.ApprovedAt = now
	}
	next := sent
	if txErr != nil {
		next = failed
	} else {
		payment.TxHash = txHash
	}
	if err := payment.Transition(next, now); err != nil {
		return nil, err
	}
	if err := s.svc.repo.Payments().Update(ctx, *payment, expected); err != nil {
		return nil, storeError(err)
	}
	s.svc.metrics.PaymentTransition(payment.Status)

	if txErr != nil {
		log.WithError(txErr).WithField("paymentId", payment.PaymentID.Hex()).Warn(
			"failed to send payment transaction",
		)
		return nil, chainError(txErr)
	}

	paymentId := payment.PaymentID
	s.svc.async(func(ctx context.Context) {
		s.awaitConfirmation(ctx, paymentId)
	})
	return payment, nil
}

// awaitConfirmation polls the receipt of a SENT_TX payment until it is mined
// or the payment timeout elapses. The watcher picks up whatever is left.
func (s *PaymentService) awaitConfirmation(ctx context.Context, paymentId common.Hash) {
	ctx, cancel := context.WithTimeout(ctx, s.svc.cfg.PaymentTimeout)
	defer cancel()

	err := utils.Retry(ctx, confirmPollInterval, func(ctx context.Context) (bool, error) {
		payment, err := s.svc.repo.Payments().Get(ctx, paymentId)
		if err != nil {
			return false, err
		}
		done, err := s.checkTransaction(ctx, *payment)
		if err != nil {
			// retried on the next poll, a conflict means someone else moved it
			log.WithError(err).WithField("paymentId", paymentId.Hex()).Debug(
				"failed to check payment transaction",
			)
			return false, nil
		}
		return done, nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).WithField("paymentId", paymentId.Hex()).Debug(
			"payment confirmation left to the watcher",
		)
	}
}

// checkTransaction moves a SENT_TX payment according to its receipt and
// reports whether the payment left SENT_TX.
func (s *PaymentService) checkTransaction(ctx context.Context, payment domain.Payment) (bool, error) {
	var confirmed, reverted domain.PaymentStatus
	var callbackType ports.CallbackType
	switch payment.Status {
	case domain.PaymentApprovedNewSentTx:
		confirmed, reverted = domain.PaymentApprovedNewConfirmed, domain.PaymentApprovedNewRevertedTx
		callbackType = ports.CallbackPayNew
	case domain.PaymentApprovedCancelSentTx:
		confirmed, reverted = domain.PaymentApprovedCancelConfirmed, domain.PaymentApprovedCancelRevertedTx
		callbackType = ports.CallbackPayCancel
	default:
		return true, nil
	}

	outcome, err := s.svc.chain.TxOutcome(ctx, payment.TxHash)
	if err != nil {
		return false, err
	}

	switch outcome {
	case domain.TxConfirmed:
		if err := s.transition(ctx, &payment, confirmed); err != nil {
			return false, err
		}
		return true, s.reply(ctx, payment)
	case domain.TxReverted:
		if err := s.transition(ctx, &payment, reverted); err != nil {
			return false, err
		}
		s.svc.notify(ports.CallbackEvent{
			Type:    callbackType,
			Code:    ports.CallbackCodeTxFailed,
			Message: "The payment transaction was reverted",
			Data:    newPaymentEvent(payment),
		})
		return true, nil
	default:
		return false, nil
	}
}

// reply delivers the success callback of a CONFIRMED_TX payment. The status
// moves first so that only one caller ever sends it.
func (s *PaymentService) reply(ctx context.Context, payment domain.Payment) error {
	var next domain.PaymentStatus
	var callbackType ports.CallbackType
	switch payment.Status {
	case domain.PaymentApprovedNewConfirmed:
		next, callbackType = domain.PaymentReplyCompletedNew, ports.CallbackPayNew
	case domain.PaymentApprovedCancelConfirmed:
		next, callbackType = domain.PaymentReplyCompletedCancel, ports.CallbackPayCancel
	default:
		return nil
	}
	if err := s.transition(ctx, &payment, next); err != nil {
		return err
	}
	s.svc.notify(ports.CallbackEvent{
		Type:    callbackType,
		Code:    ports.CallbackCodeSuccess,
		Message: "Success",
		Data:    newPaymentEvent(payment),
	})
	return nil
}

func (s *PaymentService) transition(ctx context.Context, payment *domain.Payment, next domain.PaymentStatus) error {
	expected := payment.Status
	if err := payment.Transition(next, s.svc.now()); err != nil {
		return err
	}
	if err := s.svc.repo.Payments().Update(ctx, *payment, expected); err != nil {
		return err
	}
	s.svc.metrics.PaymentTransition(payment.Status)
	return nil
}

// CloseNewPayment releases the hash-lock of a payment. A zero secret means the
// one kept by the relay since open.
func (s *PaymentService) CloseNewPayment(
	ctx context.Context, paymentId, secret common.Hash, confirm bool,
) (*domain.Payment, error) {
	return s.close(
		ctx, paymentId, secret, confirm,
		domain.PaymentReplyCompletedNew, domain.PaymentClosedNew, domain.PaymentFailedNew,
		s.svc.chain.CloseNewLoyaltyPayment,
	)
}

// CloseCancelPayment releases the hash-lock of the cancel leg.
func (s *PaymentService) CloseCancelPayment(
	ctx context.Context, paymentId, secret common.Hash, confirm bool,
) (*domain.Payment, error) {
	return s.close(
		ctx, paymentId, secret, confirm,
		domain.PaymentReplyCompletedCancel, domain.PaymentClosedCancel, domain.PaymentFailedCancel,
		s.svc.chain.CloseCancelLoyaltyPayment,
	)
}

type closeTx func(ctx context.Context, paymentId, secret common.Hash, confirm bool) (common.Hash, error)

func (s *PaymentService) close(
	ctx context.Context, paymentId, secret common.Hash, confirm bool,
	from, closed, failed domain.PaymentStatus, send closeTx,
) (*domain.Payment, error) {
	unlock, ok := s.svc.locker.tryLock(paymentId.Hex())
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("payment %s is being processed", paymentId.Hex())
	}
	defer unlock()

	payment, err := s.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status != from {
		if payment.Status == closed || payment.Status == failed {
			return nil, domain.ErrAlreadyDecided
		}
		return nil, domain.ErrInvalidState.Wrapf(
			"payment %s is %s, expected %s", paymentId.Hex(), payment.Status, from,
		)
	}

	if secret == (common.Hash{}) {
		secret = payment.Secret
	}
	if !payment.VerifySecret(secret) {
		return nil, domain.ErrSecretMismatch
	}

	txHash, err := send(ctx, paymentId, secret, confirm)
	if err != nil {
		return nil, chainError(err)
	}

	next := closed
	if !confirm {
		next = failed
	}
	payment.TxHash = txHash
	if err := s.transition(ctx, payment, next); err != nil {
		return nil, storeError(err)
	}
	return payment, nil
}

// OpenCancelPayment starts the cancel leg of a closed payment. The shop owner
// or its delegator approves it later.
func (s *PaymentService) OpenCancelPayment(ctx context.Context, paymentId common.Hash) (*domain.Payment, error) {
	unlock, ok := s.svc.locker.tryLock(paymentId.Hex())
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("payment %s is being processed", paymentId.Hex())
	}
	defer unlock()

	payment, err := s.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsCancel() {
		return nil, domain.ErrAlreadyDecided
	}
	if payment.Status != domain.PaymentClosedNew {
		return nil, domain.ErrInvalidState.Wrapf("payment %s is %s", paymentId.Hex(), payment.Status)
	}

	secret, secretLock, err := signature.NewSecret()
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	now := s.svc.now()
	payment.Secret = secret
	payment.SecretLock = secretLock
	payment.CancelOpenedAt = now
	payment.ExpiresAt = now.Add(s.svc.cfg.PaymentTimeout)
	payment.Signature = nil
	payment.TxHash = common.Hash{}
	if err := s.transition(ctx, payment, domain.PaymentOpenedCancel); err != nil {
		return nil, storeError(err)
	}

	task := domain.DelegateTask{
		ID:        newTaskID(),
		ShopID:    payment.ShopID,
		Kind:      domain.DelegateTaskCancelPayment,
		Status:    domain.DelegateTaskOpened,
		Payload:   domain.DelegateTaskPayload{PaymentID: payment.PaymentID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.svc.repo.DelegateTasks().Add(ctx, task); err != nil {
		return nil, storeError(err)
	}
	return payment, nil
}

// ApproveCancelPayment applies the decision of the shop account, or of its
// delegator, on a cancel. Approving a failed cancel re-submits it.
func (s *PaymentService) ApproveCancelPayment(
	ctx context.Context, paymentId common.Hash, approval bool, sig []byte,
) (*domain.Payment, error) {
	unlock, ok := s.svc.locker.tryLock(paymentId.Hex())
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("payment %s is being processed", paymentId.Hex())
	}
	defer unlock()

	payment, err := s.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	switch {
	case payment.Status == domain.PaymentOpenedCancel:
	case payment.Status.IsResubmittable() && payment.Status.IsCancel():
		if !approval {
			return nil, domain.ErrAlreadyDecided
		}
	default:
		return nil, domain.ErrAlreadyDecided
	}

	shop, err := s.svc.getShop(ctx, payment.ShopID)
	if err != nil {
		return nil, err
	}
	signer, err := s.svc.verifyLedgerSigner(
		ctx, sig,
		func(signer common.Address) signature.Message {
			return s.svc.codec.CancelPaymentMessage(signer, payment.PaymentID, payment.PurchaseID)
		},
		shop.Account, shop.Delegator,
	)
	if err != nil {
		return nil, err
	}

	tasks := s.svc.repo.DelegateTasks()
	task, err := tasks.GetByPayment(ctx, paymentId)
	if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, storeError(err)
	}

	if !approval {
		if err := s.transition(ctx, payment, domain.PaymentDeniedCancel); err != nil {
			return nil, storeError(err)
		}
		s.finishTask(ctx, task, domain.DelegateTaskFailed, "denied", common.Hash{})
		s.svc.notify(ports.CallbackEvent{
			Type:    ports.CallbackPayCancel,
			Code:    ports.CallbackCodeDenied,
			Message: "The cancellation was denied by the shop",
			Data:    newPaymentEvent(*payment),
		})
		return payment, nil
	}

	expected := payment.Status
	payment.Signature = sig
	txHash, txErr := s.svc.chain.OpenCancelLoyaltyPayment(ctx, paymentId, payment.SecretLock, signer, sig)
	payment, err = s.recordSubmission(
		ctx, payment, expected, txHash, txErr,
		domain.PaymentApprovedCancelSentTx, domain.PaymentApprovedCancelFailedTx,
	)
	if err != nil {
		return nil, err
	}
	s.finishTask(ctx, task, domain.DelegateTaskCompleted, "", txHash)
	return payment, nil
}

func (s *PaymentService) finishTask(
	ctx context.Context, task *domain.DelegateTask,
	status domain.DelegateTaskStatus, reason string, txHash common.Hash,
) {
	if task == nil {
		return
	}
	expected := task.Status
	task.Status = status
	task.FailReason = reason
	task.TxHash = txHash
	task.UpdatedAt = s.svc.now()
	if err := s.svc.repo.DelegateTasks().Update(ctx, *task, expected); err != nil {
		log.WithError(err).Warnf("failed to update cancel task %s", task.ID)
	}
}

// ResubmitNewPayment re-sends a failed new leg with the stored owner
// signature, as long as it is still bound to the current nonce.
func (s *PaymentService) ResubmitNewPayment(ctx context.Context, paymentId common.Hash) (*domain.Payment, error) {
	unlock, ok := s.svc.locker.tryLock(paymentId.Hex())
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("payment %s is being processed", paymentId.Hex())
	}
	defer unlock()

	payment, err := s.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	if !payment.Status.IsResubmittable() || payment.Status.IsCancel() {
		return nil, domain.ErrInvalidState.Wrapf("payment %s is %s", paymentId.Hex(), payment.Status)
	}

	nonce, err := s.svc.chain.NonceOf(ctx, payment.Account)
	if err != nil {
		return nil, chainError(err)
	}
	msg := s.svc.codec.NewPaymentMessage(
		payment.Account, payment.PaymentID, payment.PurchaseID,
		payment.Amount, payment.Currency, payment.ShopID,
	)
	if err := s.svc.codec.Verify(msg, payment.Signature, payment.Account, nonce); err != nil {
		if errors.Is(err, signature.ErrStaleNonce) {
			return nil, domain.ErrStaleNonce
		}
		return nil, domain.ErrInvalidSignature
	}
	return s.submitNew(ctx, payment)
}
