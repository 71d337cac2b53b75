package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Implementations surface ErrUserNotFound for missing rows and
// ErrDuplicateEmail when the unique email constraint is violated; concurrent
// signups with the same email are resolved by the store, not in process.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByResetTokenHash matches an outstanding, unexpired reset token.
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*User, error)
	List(ctx context.Context) ([]*User, error)

	UpdateProfile(ctx context.Context, id, fullName, email string) (*User, error)
	// UpdatePassword writes the new hash, records the change time and clears
	// any outstanding reset token in a single atomic update.
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, email string) error
	Deactivate(ctx context.Context, id string) error
}
