package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, full_name, email, password_hash, role, active,
	password_changed_at, password_reset_token_hash, password_reset_token_expires,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, u *User) error {
	row := s.db.QueryRowContext(ctx,
		`insert into users(id, full_name, email, password_hash, role, active)
		 values($1,$2,$3,$4,$5,$6)
		 returning created_at, updated_at`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Role, u.Active,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *PGStore) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users
		 where password_reset_token_hash=$1 and password_reset_token_expires > $2 and active`,
		hash, now)
	return scanUser(row)
}

func (s *PGStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where active order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateProfile(ctx context.Context, id, fullName, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set full_name=$2, email=$3, updated_at=now()
		 where id=$1
		 returning `+userColumns,
		id, fullName, email)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	// The reset fields are cleared in the same statement as the password
	// write: a redeemed token must not be redeemable twice.
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, password_changed_at=$3,
		 password_reset_token_hash=null, password_reset_token_expires=null,
		 updated_at=now()
		 where id=$1`,
		id, passwordHash, changedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_reset_token_hash=$2, password_reset_token_expires=$3, updated_at=now()
		 where email=$1 and active`,
		email, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) ClearResetToken(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_reset_token_hash=null, password_reset_token_expires=null, updated_at=now()
		 where email=$1`,
		email)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u           User
		changedAt   sql.NullTime
		resetHash   sql.NullString
		resetExpiry sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.Active,
		&changedAt, &resetHash, &resetExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if changedAt.Valid {
		u.PasswordChangedAt = &changedAt.Time
	}
	if resetHash.Valid {
		u.ResetTokenHash = &resetHash.String
	}
	if resetExpiry.Valid {
		u.ResetTokenExpiresAt = &resetExpiry.Time
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
