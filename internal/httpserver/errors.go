package httpserver

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/domain"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrRewardNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUserAlreadyExist),
		errors.Is(err, domain.ErrInsufficientPoints),
		errors.Is(err, domain.ErrInvalidHandle),
		errors.Is(err, domain.ErrStaleProposal):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
