package linksource

import (
	"context"
	"database/sql"
	"errors"

	"linkdesk.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, name string) (LinkSource, error) {
	ls := LinkSource{ID: ids.New(), Name: name}
	row := s.db.QueryRowContext(ctx,
		`insert into link_sources(id, name) values($1,$2) returning created_at, updated_at`,
		ls.ID, ls.Name)
	if err := row.Scan(&ls.CreatedAt, &ls.UpdatedAt); err != nil {
		return LinkSource{}, err
	}
	return ls, nil
}

func (s *PGStore) List(ctx context.Context) ([]LinkSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at from link_sources order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []LinkSource
	for rows.Next() {
		var ls LinkSource
		if err := rows.Scan(&ls.ID, &ls.Name, &ls.CreatedAt, &ls.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, ls)
	}
	return res, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, id, name string) (LinkSource, error) {
	row := s.db.QueryRowContext(ctx,
		`update link_sources set name=$2, updated_at=now()
		 where id=$1
		 returning id, name, created_at, updated_at`,
		id, name)
	var ls LinkSource
	if err := row.Scan(&ls.ID, &ls.Name, &ls.CreatedAt, &ls.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LinkSource{}, ErrNotFound
		}
		return LinkSource{}, err
	}
	return ls, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) (LinkSource, error) {
	row := s.db.QueryRowContext(ctx,
		`delete from link_sources where id=$1
		 returning id, name, created_at, updated_at`,
		id)
	var ls LinkSource
	if err := row.Scan(&ls.ID, &ls.Name, &ls.CreatedAt, &ls.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LinkSource{}, ErrNotFound
		}
		return LinkSource{}, err
	}
	return ls, nil
}
