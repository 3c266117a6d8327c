package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrEscrowNotHeld            = errors.New("escrow not held")
	ErrEscrowExhausted          = errors.New("escrow exhausted")
	ErrWithdrawalBelowMinimum   = errors.New("withdrawal below minimum")
	ErrWithdrawalNotCancellable = errors.New("withdrawal not cancellable")
	ErrProviderUnhealthy        = errors.New("provider unhealthy")
	ErrGatewayTimeout           = errors.New("gateway timeout")
	ErrGatewayRejected          = errors.New("gateway rejected")
	ErrInvalidPostbackSignature = errors.New("invalid postback signature")
	ErrUnknownProvider          = errors.New("unknown provider")
	ErrSelfReferral             = errors.New("cannot refer yourself")
	ErrAlreadyReferred          = errors.New("user already referred")
)
