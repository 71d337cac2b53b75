package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linkdesk.org/internal/ids"
)

// Mailer delivers account mail out of band. Delivery blocks the issuing
// request; a failed send is surfaced to the caller.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements signup, login and the password lifecycle on top of a
// Store, a token issuer and a delivery channel.
type Service struct {
	store  Store
	tokens *Tokens
	mailer Mailer
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithMailer wires the delivery channel used for password-reset mail.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Signup registers a new account and logs it in.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (*User, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: full_name, email and password are required", ErrInvalidInput)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	user := &User{
		ID:           ids.New(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		Active:       true,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates credentials and issues a token. An unknown email is
// reported distinctly from a wrong password, matching the exposed API.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.activeUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrBadCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to a live user. The token must carry a
// valid signature, reference an existing active account, and postdate the
// account's last password change.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserNotFound
	}
	if stale(user.PasswordChangedAt, claims.IssuedAt.Time) {
		return nil, ErrTokenStale
	}
	return user, nil
}

// stale reports whether the password changed after the token was issued.
// JWT issued-at carries second precision, so the change time is compared at
// the same resolution: a token minted in the same second as the change (i.e.
// right after the update completed) remains valid.
func stale(changedAt *time.Time, issuedAt time.Time) bool {
	if changedAt == nil {
		return false
	}
	return changedAt.Truncate(time.Second).After(issuedAt)
}

// ForgotPassword issues a single-use reset token for the account and mails the
// plaintext to its registered address. resetBase is the absolute URL prefix the
// token gets appended to. If delivery fails the stored token state is rolled
// back so no valid-looking token survives an undelivered email.
func (s *Service) ForgotPassword(ctx context.Context, email, resetBase string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.activeUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return ErrDelivery
	}

	plaintext, hash, err := newResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(resetTokenTTL)
	if err := s.store.SetResetToken(ctx, user.Email, hash, expiresAt); err != nil {
		return err
	}

	resetURL := strings.TrimRight(resetBase, "/") + "/" + plaintext
	body := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password to: %s\n"+
		"If you didn't forget your password, please ignore this email.", resetURL)
	if err := s.mailer.Send(ctx, user.Email, "Your password reset token (valid for 10 minutes)", body); err != nil {
		// Fail closed: an undeliverable token must not remain redeemable.
		if clearErr := s.store.ClearResetToken(ctx, user.Email); clearErr != nil {
			return fmt.Errorf("%w: rollback failed: %v", ErrDelivery, clearErr)
		}
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password. The stored
// token state is cleared atomically with the password write, so a second
// redeem of the same token fails. The fresh login token is issued only after
// the store write completed.
func (s *Service) ResetPassword(ctx context.Context, plaintext, newPassword string) (*User, string, error) {
	if strings.TrimSpace(plaintext) == "" || newPassword == "" {
		return nil, "", fmt.Errorf("%w: token and password are required", ErrInvalidInput)
	}

	user, err := s.store.FindByResetTokenHash(ctx, hashResetToken(plaintext), s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrResetTokenInvalid
		}
		return nil, "", err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// UpdatePassword changes the password of an authenticated user and issues a
// fresh token. Tokens issued before the change become stale.
func (s *Service) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, error) {
	if currentPassword == "" || newPassword == "" {
		return "", fmt.Errorf("%w: current and new password are required", ErrInvalidInput)
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return "", ErrBadCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return "", err
	}
	return s.tokens.Issue(user.ID, user.Email)
}

// UpdateProfile changes the caller's name and/or email. Nil fields are left
// untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID string, fullName, email *string) (*User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	newName := user.FullName
	if fullName != nil {
		newName = strings.TrimSpace(*fullName)
	}
	newEmail := user.Email
	if email != nil {
		newEmail = normalizeEmail(*email)
	}
	if newName == "" || newEmail == "" {
		return nil, fmt.Errorf("%w: full_name and email must not be empty", ErrInvalidInput)
	}
	return s.store.UpdateProfile(ctx, user.ID, newName, newEmail)
}

// Deactivate soft-deletes the account; the record is retained.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	return s.store.Deactivate(ctx, userID)
}

// ListUsers returns all active accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

func (s *Service) activeUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
