package handlers

import (
	"context"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/interface/web/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accounts *application.AccountService
}

func NewAccountHandler(accounts *application.AccountService) *AccountHandler {
	return &AccountHandler{accounts}
}

func (h *AccountHandler) CreateDelegator(c *gin.Context) {
	var req types.CreateDelegatorRequest
	if !bindJSON(c, &req) {
		return
	}

	delegator, err := h.accounts.CreateDelegator(
		c.Request.Context(), common.HexToHash(req.ShopID), common.HexToAddress(req.Account),
		parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.Delegator{ShopID: req.ShopID, Account: req.Account, Delegator: delegator.Hex()})
}

func (h *AccountHandler) SaveDelegator(c *gin.Context) {
	var req types.SaveDelegatorRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.SaveDelegator(
		c.Request.Context(), common.HexToHash(req.ShopID), common.HexToAddress(req.Account),
		common.HexToAddress(req.Delegator), parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.Delegator{
		ShopID: req.ShopID, Account: req.Account, Delegator: req.Delegator, TxHash: txHash.Hex(),
	})
}

func (h *AccountHandler) Refund(c *gin.Context) {
	var req types.RefundRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.Refund(
		c.Request.Context(), common.HexToHash(req.ShopID), common.HexToAddress(req.Account),
		parseAmount(req.Amount), parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TxHash{TxHash: txHash.Hex()})
}

func (h *AccountHandler) CollectSettlement(c *gin.Context) {
	var req types.CollectSettlementRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.CollectSettlement(
		c.Request.Context(), common.HexToHash(req.ShopID), common.HexToAddress(req.Account),
		parseHashes(req.Clients), parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TxHash{TxHash: txHash.Hex()})
}

func (h *AccountHandler) SetSettlementManager(c *gin.Context) {
	var req types.SetSettlementManagerRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.SetSettlementManager(
		c.Request.Context(), common.HexToHash(req.ShopID), common.HexToHash(req.ManagerID),
		parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TxHash{TxHash: txHash.Hex()})
}

func (h *AccountHandler) RemoveSettlementManager(c *gin.Context) {
	var req types.RemoveSettlementManagerRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.RemoveSettlementManager(
		c.Request.Context(), common.HexToHash(req.ShopID), parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TxHash{TxHash: txHash.Hex()})
}

func (h *AccountHandler) GetSettlementManager(c *gin.Context) {
	shopId, valid := hashParam(c, "shopId")
	if !valid {
		return
	}

	managerId, err := h.accounts.GetSettlementManager(c.Request.Context(), shopId)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.SettlementManager{ShopID: shopId.Hex(), ManagerID: managerId.Hex()})
}

func (h *AccountHandler) GetSettlementClientLength(c *gin.Context) {
	managerId, valid := hashParam(c, "managerId")
	if !valid {
		return
	}

	length, err := h.accounts.GetSettlementClientLength(c.Request.Context(), managerId)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.SettlementClients{ManagerID: managerId.Hex(), Length: length})
}

func (h *AccountHandler) GetSettlementClients(c *gin.Context) {
	managerId, valid := hashParam(c, "managerId")
	if !valid {
		return
	}
	var req types.SettlementClientsQuery
	if !bindQuery(c, &req) {
		return
	}

	clients, err := h.accounts.GetSettlementClients(
		c.Request.Context(), managerId, req.StartIndex, req.EndIndex,
	)
	if err != nil {
		fail(c, err)
		return
	}
	list := make([]string, 0, len(clients))
	for _, client := range clients {
		list = append(list, client.Hex())
	}
	ok(c, types.SettlementClients{ManagerID: managerId.Hex(), Length: len(list), Clients: list})
}

func (h *AccountHandler) GetAgent(c *gin.Context) {
	kind, valid := agentKindParam(c)
	if !valid {
		return
	}
	account := c.Param("account")
	if !common.IsHexAddress(account) {
		fail(c, domain.ErrValidation.Wrapf("invalid account %q", account))
		return
	}

	agent, err := h.accounts.GetAgent(c.Request.Context(), kind, common.HexToAddress(account))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.Agent{Account: common.HexToAddress(account).Hex(), Agent: agent.Hex()})
}

func (h *AccountHandler) RegisterAgent(c *gin.Context) {
	kind, valid := agentKindParam(c)
	if !valid {
		return
	}
	var req types.RegisterAgentRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := h.accounts.RegisterAgent(
		c.Request.Context(), kind, common.HexToAddress(req.Account), common.HexToAddress(req.Agent),
		parseSignature(req.Signature),
	)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.Agent{Account: req.Account, Agent: req.Agent, TxHash: txHash.Hex()})
}

func (h *AccountHandler) WithdrawViaBridge(c *gin.Context) {
	h.bridge(c, h.accounts.WithdrawViaBridge)
}

func (h *AccountHandler) DepositViaBridge(c *gin.Context) {
	h.bridge(c, h.accounts.DepositViaBridge)
}

func (h *AccountHandler) bridge(
	c *gin.Context, fn func(ctx context.Context, req application.BridgeRequest) (common.Hash, error),
) {
	var req types.BridgeRequest
	if !bindJSON(c, &req) {
		return
	}

	txHash, err := fn(c.Request.Context(), application.BridgeRequest{
		Account:   common.HexToAddress(req.Account),
		Amount:    parseAmount(req.Amount),
		Expiry:    req.Expiry,
		Signature: parseSignature(req.Signature),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types.TxHash{TxHash: txHash.Hex()})
}

func hashParam(c *gin.Context, name string) (common.Hash, bool) {
	value := c.Param(name)
	if b, err := hexutil.Decode(value); err != nil || len(b) != common.HashLength {
		fail(c, domain.ErrValidation.Wrapf("invalid %s %q", name, value))
		return common.Hash{}, false
	}
	return common.HexToHash(value), true
}

func agentKindParam(c *gin.Context) (domain.AgentKind, bool) {
	kind, valid := domain.AgentKindFromString(c.Param("kind"))
	if !valid {
		fail(c, domain.ErrValidation.Wrapf("unknown agent kind %q", c.Param("kind")))
	}
	return kind, valid
}
