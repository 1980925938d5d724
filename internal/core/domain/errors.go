package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuth
	KindState
	KindNotFound
	KindChain
	KindChainReverted
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindChain:
		return "chain"
	case KindChainReverted:
		return "chain_reverted"
	default:
		return "internal"
	}
}

// Error carries the stable numeric code returned to HTTP clients.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on code so wrapped copies compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of the sentinel carrying err as cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, cause: err}
}

func (e *Error) Wrapf(format string, args ...any) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

func newError(kind ErrorKind, code int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrValidation = newError(KindValidation, 2001, "Failed to check the validity of parameters")
	ErrAccessKey  = newError(KindAuth, 2002, "The access key entered is not valid")

	ErrInvalidSignature = newError(KindAuth, 1501, "Invalid signature")
	ErrStaleNonce       = newError(KindAuth, 1502, "The nonce used for the signature is not current")

	ErrPaymentNotFound          = newError(KindNotFound, 2003, "The payment ID is not exist")
	ErrTaskNotFound             = newError(KindNotFound, 2004, "The task ID is not exist")
	ErrTemporaryAccountNotFound = newError(KindNotFound, 2005, "The temporary account is not exist")
	ErrShopNotFound             = newError(KindNotFound, 2006, "The shop ID is not exist")
	ErrExpired                  = newError(KindState, 2007, "The request has expired")

	ErrAlreadyDecided     = newError(KindState, 2020, "The status code for this payment cannot be approved")
	ErrInvalidState       = newError(KindState, 2022, "The operation is not allowed in the current status")
	ErrSecretMismatch     = newError(KindState, 2023, "The secret does not match the secret lock")
	ErrDuplicateRequest   = newError(KindState, 2024, "An open payment already exists for this purchase")
	ErrInvalidAccount     = newError(KindValidation, 2030, "The account could not be resolved")
	ErrDelegatorMismatch  = newError(KindAuth, 2031, "The delegator of the shop does not match")
	ErrAgentNotRegistered = newError(KindAuth, 2032, "The signer is not a registered agent of the account")
	ErrInvalidSettlement  = newError(KindValidation, 2033, "The settlement relationship is not valid")

	ErrChain         = newError(KindChain, 5000, "Failed to execute the transaction")
	ErrChainReverted = newError(KindChainReverted, 5001, "The transaction was reverted")
	ErrInternal      = newError(KindInternal, 9000, "Internal server error")

	// ErrStatusConflict is returned by repositories when a compare-and-swap
	// update finds a different stored status.
	ErrStatusConflict = errors.New("stored status changed concurrently")
	ErrAlreadyExists  = errors.New("record already exists")
)

// AsError returns the typed error carried by err, mapping unknown errors to
// ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}
