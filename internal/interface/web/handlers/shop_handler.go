package handlers

import (
	"context"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/interface/web/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type ShopHandler struct {
	shops *application.ShopService
}

func NewShopHandler(shops *application.ShopService) *ShopHandler {
	return &ShopHandler{shops}
}

func (h *ShopHandler) CreateUpdate(c *gin.Context) {
	var req types.ShopUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.shops.CreateUpdateTask(
		c.Request.Context(), common.HexToHash(req.ShopID), req.Name, req.Currency,
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toDelegateTask(*task))
}

func (h *ShopHandler) CreateStatus(c *gin.Context) {
	var req types.ShopStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.shops.CreateStatusTask(
		c.Request.Context(), common.HexToHash(req.ShopID), domain.ShopStatus(req.Status),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toDelegateTask(*task))
}

func (h *ShopHandler) ApproveUpdate(c *gin.Context) {
	h.approve(c, h.shops.ApproveUpdateTask)
}

func (h *ShopHandler) ApproveStatus(c *gin.Context) {
	h.approve(c, h.shops.ApproveStatusTask)
}

func (h *ShopHandler) approve(
	c *gin.Context,
	fn func(ctx context.Context, taskId string, approval bool, sig []byte) (*domain.DelegateTask, error),
) {
	var req types.TaskApprovalRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := fn(c.Request.Context(), req.TaskID, *req.Approval, parseSignature(req.Signature))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toDelegateTask(*task))
}

func (h *ShopHandler) GetTask(c *gin.Context) {
	var req types.TaskQuery
	if !bindQuery(c, &req) {
		return
	}

	task, err := h.shops.GetTask(c.Request.Context(), req.TaskID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toDelegateTask(*task))
}

func toDelegateTask(t domain.DelegateTask) types.DelegateTask {
	return types.DelegateTask{
		TaskID:     t.ID,
		ShopID:     t.ShopID.Hex(),
		Type:       t.Kind.String(),
		Status:     t.Status.String(),
		Name:       t.Payload.Name,
		Currency:   t.Payload.Currency,
		ShopStatus: int(t.Payload.ShopStatus),
		Attempts:   t.Attempts,
		TxHash:     hashHex(t.TxHash),
		FailReason: t.FailReason,
		CreatedAt:  t.CreatedAt.Unix(),
		UpdatedAt:  t.UpdatedAt.Unix(),
	}
}
