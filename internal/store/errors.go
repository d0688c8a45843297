package store

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrInvalidMethod       = errors.New("invalid method")
)
