package domain

import "errors"

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidIndex       = errors.New("invalid cart index")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidHandle      = errors.New("invalid or expired handle")
	ErrStaleProposal      = errors.New("proposal no longer matches current state")
)
