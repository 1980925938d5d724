package handlers

import (
	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/interface/web/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *application.PaymentService
	accounts *application.AccountService
}

func NewPaymentHandler(
	payments *application.PaymentService, accounts *application.AccountService,
) *PaymentHandler {
	return &PaymentHandler{payments, accounts}
}

func (h *PaymentHandler) GetInfo(c *gin.Context) {
	var req types.PaymentInfoQuery
	if !bindQuery(c, &req) {
		return
	}

	info, err := h.payments.GetPaymentInfo(
		c.Request.Context(), common.HexToAddress(req.Account), parseAmount(req.Amount), req.Currency,
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.PaymentInfo{
		Account:    info.Account.Hex(),
		Amount:     bigString(info.Amount),
		Currency:   info.Currency,
		FeeRate:    info.FeeRate,
		PaidPoint:  bigString(info.PaidPoint),
		FeePoint:   bigString(info.FeePoint),
		TotalPoint: bigString(info.TotalPoint),
	})
}

func (h *PaymentHandler) IssueTemporaryAccount(c *gin.Context) {
	var req types.TemporaryAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	tmp, err := h.accounts.IssueTemporaryAccount(
		c.Request.Context(), common.HexToAddress(req.Account), parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TemporaryAccount{
		TemporaryAccount: tmp.TemporaryAccount.Hex(),
		ExpiresAt:        tmp.ExpiresAt.Unix(),
	})
}

func (h *PaymentHandler) GetItem(c *gin.Context) {
	var req types.PaymentQuery
	if !bindQuery(c, &req) {
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), common.HexToHash(req.PaymentID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) OpenNew(c *gin.Context) {
	var req types.OpenNewPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.OpenNewPayment(c.Request.Context(), application.OpenPaymentRequest{
		PurchaseID: req.PurchaseID,
		Amount:     parseAmount(req.Amount),
		Currency:   req.Currency,
		ShopID:     common.HexToHash(req.ShopID),
		Account:    common.HexToAddress(req.Account),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) ApproveNew(c *gin.Context) {
	var req types.PaymentApprovalRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.ApproveNewPayment(
		c.Request.Context(), common.HexToHash(req.PaymentID), *req.Approval, parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) CloseNew(c *gin.Context) {
	var req types.ClosePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.CloseNewPayment(
		c.Request.Context(), common.HexToHash(req.PaymentID), common.HexToHash(req.Secret), *req.Confirm,
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) OpenCancel(c *gin.Context) {
	var req types.OpenCancelPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.OpenCancelPayment(c.Request.Context(), common.HexToHash(req.PaymentID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) ApproveCancel(c *gin.Context) {
	var req types.PaymentApprovalRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.ApproveCancelPayment(
		c.Request.Context(), common.HexToHash(req.PaymentID), *req.Approval, parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func (h *PaymentHandler) CloseCancel(c *gin.Context) {
	var req types.ClosePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.CloseCancelPayment(
		c.Request.Context(), common.HexToHash(req.PaymentID), common.HexToHash(req.Secret), *req.Confirm,
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toPayment(*payment))
}

func toPayment(p domain.Payment) types.Payment {
	payment := types.Payment{
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
		StatusName:    p.Status.String(),
		SecretLock:    p.SecretLock.Hex(),
		TxHash:        hashHex(p.TxHash),
		CreatedAt:     p.CreatedAt.Unix(),
		ExpiresAt:     p.ExpiresAt.Unix(),
		UpdatedAt:     p.UpdatedAt.Unix(),
	}
	if p.SecretRevealed() {
		payment.Secret = p.Secret.Hex()
	}
	return payment
}
