package types

type PaymentInfo struct {
	Account    string  `json:"account"`
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	FeeRate    float64 `json:"feeRate"`
	PaidPoint  string  `json:"paidPoint"`
	FeePoint   string  `json:"feePoint"`
	TotalPoint string  `json:"totalPoint"`
}

type TemporaryAccount struct {
	TemporaryAccount string `json:"temporaryAccount"`
	ExpiresAt        int64  `json:"expiresAt"`
}

type Payment struct {
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
	StatusName    string `json:"paymentStatusName"`
	SecretLock    string `json:"secretLock"`
	// Secret is only filled once the lock has been released on chain.
	Secret    string `json:"secret,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type TxHash struct {
	TxHash string `json:"txHash"`
}
