package account

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrMemorialNotFound = errors.New("memorial not found")
	ErrMissingAccountID = errors.New("account ID is required")
)
