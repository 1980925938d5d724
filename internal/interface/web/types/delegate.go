package types

type DelegateTask struct {
	TaskID     string `json:"taskId"`
	ShopID     string `json:"shopId"`
	Type       string `json:"type"`
	Status     string `json:"taskStatus"`
	Name       string `json:"name,omitempty"`
	Currency   string `json:"currency,omitempty"`
	ShopStatus int    `json:"status,omitempty"`
	Attempts   int    `json:"attempts"`
	TxHash     string `json:"txHash,omitempty"`
	FailReason string `json:"failReason,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

type Delegator struct {
	ShopID    string `json:"shopId"`
	Account   string `json:"account"`
	Delegator string `json:"delegator"`
	TxHash    string `json:"txHash,omitempty"`
}

type SettlementManager struct {
	ShopID    string `json:"shopId"`
	ManagerID string `json:"managerId"`
}

type SettlementClients struct {
	ManagerID string   `json:"managerId"`
	Length    int      `json:"length"`
	Clients   []string `json:"clients,omitempty"`
}

type Agent struct {
	Account string `json:"account"`
	Agent   string `json:"agent"`
	TxHash  string `json:"txHash,omitempty"`
}
