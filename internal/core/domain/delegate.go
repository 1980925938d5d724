package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type DelegateTaskKind int

const (
	DelegateTaskUpdate DelegateTaskKind = iota
	DelegateTaskStatusChange
	DelegateTaskCancelPayment
)

func (k DelegateTaskKind) String() string {
	switch k {
	case DelegateTaskUpdate:
		return "UPDATE"
	case DelegateTaskStatusChange:
		return "STATUS"
	case DelegateTaskCancelPayment:
		return "CANCEL_PAYMENT"
	default:
		return "UNKNOWN"
	}
}

type DelegateTaskStatus int

const (
	DelegateTaskOpened DelegateTaskStatus = iota
	DelegateTaskInProgress
	DelegateTaskCompleted
	DelegateTaskFailed
)

// String returns the string representation of the status
func (s DelegateTaskStatus) String() string {
	switch s {
	case DelegateTaskOpened:
		return "OPENED"
	case DelegateTaskInProgress:
		return "IN_PROGRESS"
	case DelegateTaskCompleted:
		return "COMPLETED"
	case DelegateTaskFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DelegateTaskStatusFromString parses string to DelegateTaskStatus
func DelegateTaskStatusFromString(s string) (DelegateTaskStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPENED":
		return DelegateTaskOpened, nil
	case "IN_PROGRESS":
		return DelegateTaskInProgress, nil
	case "COMPLETED":
		return DelegateTaskCompleted, nil
	case "FAILED":
		return DelegateTaskFailed, nil
	default:
		return DelegateTaskOpened, fmt.Errorf(
			"invalid status: %s. Must be one of: OPENED, IN_PROGRESS, COMPLETED, FAILED", s,
		)
	}
}

func (s DelegateTaskStatus) IsTerminal() bool {
	return s == DelegateTaskCompleted || s == DelegateTaskFailed
}

type ShopStatus int

const (
	ShopStatusInvalid ShopStatus = iota
	ShopStatusActive
	ShopStatusInactive
)

func (s ShopStatus) String() string {
	switch s {
	case ShopStatusActive:
		return "ACTIVE"
	case ShopStatusInactive:
		return "INACTIVE"
	default:
		return "INVALID"
	}
}

// DelegateTaskPayload holds the fields of the single kind a task carries.
type DelegateTaskPayload struct {
	Name       string      // UPDATE
	Currency   string      // UPDATE
	ShopStatus ShopStatus  // STATUS
	PaymentID  common.Hash // CANCEL_PAYMENT
}

// DelegateTask is a shop action waiting for the owner or its delegator.
type DelegateTask struct {
	ID         string
	ShopID     common.Hash
	Kind       DelegateTaskKind
	Status     DelegateTaskStatus
	Payload    DelegateTaskPayload
	Attempts   int
	FailReason string // set only when task is failed
	TxHash     common.Hash
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DelegateRepository interface {
	Add(ctx context.Context, task DelegateTask) error
	GetByID(ctx context.Context, id string) (*DelegateTask, error)
	// GetAll returns tasks of the given kind and status ordered by creation.
	GetAll(ctx context.Context, kind DelegateTaskKind, status DelegateTaskStatus) ([]DelegateTask, error)
	// GetByPayment returns the non terminal cancel task of a payment, if any.
	GetByPayment(ctx context.Context, paymentId common.Hash) (*DelegateTask, error)
	// Update persists task only if the stored status still equals expected.
	Update(ctx context.Context, task DelegateTask, expected DelegateTaskStatus) error
	Close()
}
