// Package auth validates credentials and opens or restores loyalty accounts. It is the
// identity collaborator of the storefront engine: it decides who the current user is.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	ErrValidation         = errors.New("validation")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExist   = errors.New("user already exist")
)

const (
	MinNameLength     = 2
	MinPasswordLength = 6
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) bool {
	return emailRe.MatchString(email)
}

type AuthService struct {
	Accounts *loyalty.Accounts
}

func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if len([]rune(name)) < MinNameLength {
		return nil, fmt.Errorf("%w: name must be at least %d characters", ErrValidation, MinNameLength)
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if _, exists := s.Accounts.Lookup(ctx, email); exists {
		l.Warn("signup_failed", "reason", "user already exist", "email", email)
		return nil, ErrUserAlreadyExist
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("signup_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: pwHash}
	if !s.Accounts.Save(ctx, user) {
		l.Warn("signup_persist_failed", "email", email)
	}
	l.Info("signup_success", "email", email)
	return user, nil
}

// Login restores the archived account for email, or opens a new one named after the
// address' local part.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	user, exists := s.Accounts.Lookup(ctx, email)
	if exists {
		if user.PasswordHash != "" && !hash.CheckPassword(user.PasswordHash, password) {
			l.Warn("login_failed", "reason", "invalid email or password", "email", email)
			return nil, ErrInvalidCredentials
		}
	} else {
		pwHash, err := hash.HashPassword(password)
		if err != nil {
			l.Error("login_failed", "reason", "cannot hash the password", "error", err)
			return nil, err
		}
		user = &models.User{Name: strings.SplitN(email, "@", 2)[0], Email: email, PasswordHash: pwHash}
	}

	if !s.Accounts.Save(ctx, user) {
		l.Warn("login_persist_failed", "email", email)
	}
	l.Info("login_success", "email", email, "new_account", !exists)
	return user, nil
}

func (s *AuthService) Logout(ctx context.Context) bool {
	return s.Accounts.ClearCurrent(ctx)
}

func validateCredentials(email, password string) error {
	if !ValidateEmail(email) {
		return fmt.Errorf("%w: please enter a valid email address", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	return nil
}
