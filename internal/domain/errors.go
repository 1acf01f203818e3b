package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrStateConflict       = errors.New("lifecycle state conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNothingToRedeem     = errors.New("nothing to redeem")
	ErrAlreadyRegistered   = errors.New("already registered")
	ErrReentrantCall       = errors.New("reentrant call")
	ErrExternalFailure     = errors.New("external call failed")
)
