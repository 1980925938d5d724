package ports

import "context"

type CallbackType string

const (
	CallbackPayNew     CallbackType = "pay_new"
	CallbackPayCancel  CallbackType = "pay_cancel"
	CallbackShopUpdate CallbackType = "shop_update"
	CallbackShopStatus CallbackType = "shop_status"
)

const (
	CallbackCodeSuccess  = 0
	CallbackCodeDenied   = 4000
	CallbackCodeTxFailed = 5000
	CallbackCodeTimeout  = 7000
)

type CallbackEvent struct {
	Type    CallbackType
	Code    int
	Message string
	Data    any
}

// Notifier delivers status changes to the shop backend.
type Notifier interface {
	Notify(ctx context.Context, event CallbackEvent) error
}
