package types

type TemporaryAccountRequest struct {
	Account   string `json:"account" binding:"required,eth_addr"`
	Signature string `json:"signature" binding:"required,signature"`
}

type PaymentInfoQuery struct {
	Account  string `form:"account" binding:"required,eth_addr"`
	Amount   string `form:"amount" binding:"required,uint256"`
	Currency string `form:"currency" binding:"required,currency"`
}

type PaymentQuery struct {
	PaymentID string `form:"paymentId" binding:"required,hash32"`
}

type OpenNewPaymentRequest struct {
	PurchaseID string `json:"purchaseId" binding:"required,purchaseid"`
	Amount     string `json:"amount" binding:"required,uint256"`
	Currency   string `json:"currency" binding:"required,currency"`
	ShopID     string `json:"shopId" binding:"required,hash32"`
	Account    string `json:"account" binding:"required,eth_addr"`
}

type PaymentApprovalRequest struct {
	PaymentID string `json:"paymentId" binding:"required,hash32"`
	Approval  *bool  `json:"approval" binding:"required"`
	Signature string `json:"signature" binding:"required,signature"`
}

type ClosePaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required,hash32"`
	Confirm   *bool  `json:"confirm" binding:"required"`
	// Secret defaults to the one kept by the relay.
	Secret string `json:"secret" binding:"omitempty,hash32"`
}

type OpenCancelPaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required,hash32"`
}

type ShopUpdateRequest struct {
	ShopID   string `json:"shopId" binding:"required,hash32"`
	Name     string `json:"name" binding:"required,max=64"`
	Currency string `json:"currency" binding:"required,currency"`
}

type ShopStatusRequest struct {
	ShopID string `json:"shopId" binding:"required,hash32"`
	// 1 active, 2 inactive.
	Status int `json:"status" binding:"required,oneof=1 2"`
}

type TaskApprovalRequest struct {
	TaskID    string `json:"taskId" binding:"required,uuid"`
	Approval  *bool  `json:"approval" binding:"required"`
	Signature string `json:"signature" binding:"required,signature"`
}

type TaskQuery struct {
	TaskID string `form:"taskId" binding:"required,uuid"`
}

type CreateDelegatorRequest struct {
	ShopID    string `json:"shopId" binding:"required,hash32"`
	Account   string `json:"account" binding:"required,eth_addr"`
	Signature string `json:"signature" binding:"required,signature"`
}

type SaveDelegatorRequest struct {
	ShopID    string `json:"shopId" binding:"required,hash32"`
	Account   string `json:"account" binding:"required,eth_addr"`
	Delegator string `json:"delegator" binding:"required,eth_addr"`
	Signature string `json:"signature" binding:"required,signature"`
}

type RefundRequest struct {
	ShopID    string `json:"shopId" binding:"required,hash32"`
	Amount    string `json:"amount" binding:"required,uint256"`
	Account   string `json:"account" binding:"required,eth_addr"`
	Signature string `json:"signature" binding:"required,signature"`
}

type CollectSettlementRequest struct {
	ShopID    string   `json:"shopId" binding:"required,hash32"`
	Account   string   `json:"account" binding:"required,eth_addr"`
	Clients   []string `json:"clients" binding:"required,min=1,max=32,dive,hash32"`
	Signature string   `json:"signature" binding:"required,signature"`
}

type SetSettlementManagerRequest struct {
	ShopID    string `json:"shopId" binding:"required,hash32"`
	ManagerID string `json:"managerId" binding:"required,hash32"`
	Signature string `json:"signature" binding:"required,signature"`
}

type RemoveSettlementManagerRequest struct {
	ShopID    string `json:"shopId" binding:"required,hash32"`
	Signature string `json:"signature" binding:"required,signature"`
}

type SettlementClientsQuery struct {
	StartIndex int `form:"startIndex" binding:"min=0"`
	EndIndex   int `form:"endIndex" binding:"min=0"`
}

type RegisterAgentRequest struct {
	Account   string `json:"account" binding:"required,eth_addr"`
	Agent     string `json:"agent" binding:"required,eth_addr,nefield=Account"`
	Signature string `json:"signature" binding:"required,signature"`
}

type BridgeRequest struct {
	Account   string `json:"account" binding:"required,eth_addr"`
	Amount    string `json:"amount" binding:"required,uint256"`
	Expiry    int64  `json:"expiry" binding:"required,gt=0"`
	Signature string `json:"signature" binding:"required,signature"`
}
