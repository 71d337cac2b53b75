package linksource

import (
	"context"
	"errors"
	"testing"
)

func TestServiceCRUD(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	created, err := svc.Add(ctx, "  newsletter  ")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created.ID == "" || created.Name != "newsletter" {
		t.Fatalf("unexpected record: %+v", created)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", created)
	}

	second, err := svc.Add(ctx, "referral")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}

	renamed, err := svc.Update(ctx, created.ID, "weekly newsletter")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if renamed.ID != created.ID || renamed.Name != "weekly newsletter" {
		t.Fatalf("unexpected record: %+v", renamed)
	}

	deleted, err := svc.Delete(ctx, second.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != second.ID || deleted.Name != "referral" {
		t.Fatalf("delete must return the removed record: %+v", deleted)
	}

	all, err = svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != created.ID {
		t.Fatalf("unexpected records after delete: %+v", all)
	}
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Add(ctx, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Update(ctx, "", "name"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Update(ctx, "id", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Delete(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestServiceUnknownID(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Update(ctx, "missing", "name"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
