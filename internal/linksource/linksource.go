// Package linksource manages the link-source catalog.
package linksource

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("linksource: not found")
	ErrInvalidInput = errors.New("linksource: invalid input")
)

// LinkSource is a named origin links can be attributed to.
type LinkSource struct {
	ID        string    `json:"link_source_id"`
	Name      string    `json:"link_source_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store describes persistence for link sources.
type Store interface {
	Create(ctx context.Context, name string) (LinkSource, error)
	List(ctx context.Context) ([]LinkSource, error)
	Update(ctx context.Context, id, name string) (LinkSource, error)
	Delete(ctx context.Context, id string) (LinkSource, error)
}

// Service validates input and delegates to the store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add registers a new link source.
func (s *Service) Add(ctx context.Context, name string) (LinkSource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LinkSource{}, ErrInvalidInput
	}
	return s.store.Create(ctx, name)
}

// List returns all link sources.
func (s *Service) List(ctx context.Context) ([]LinkSource, error) {
	return s.store.List(ctx)
}

// Update renames an existing link source.
func (s *Service) Update(ctx context.Context, id, name string) (LinkSource, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return LinkSource{}, ErrInvalidInput
	}
	return s.store.Update(ctx, id, name)
}

// Delete removes a link source and returns the deleted record.
func (s *Service) Delete(ctx context.Context, id string) (LinkSource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return LinkSource{}, ErrInvalidInput
	}
	return s.store.Delete(ctx, id)
}
