package linksource

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newPGStoreTest(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func TestPGStoreCreate(t *testing.T) {
	store, mock := newPGStoreTest(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`insert into link_sources`).
		WithArgs(sqlmock.AnyArg(), "newsletter").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	ls, err := store.Create(context.Background(), "newsletter")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ls.ID == "" || ls.Name != "newsletter" || !ls.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record: %+v", ls)
	}
}

func TestPGStoreUpdateNotFound(t *testing.T) {
	store, mock := newPGStoreTest(t)

	mock.ExpectQuery(`update link_sources set name=\$2`).
		WithArgs("missing", "renamed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))

	if _, err := store.Update(context.Background(), "missing", "renamed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreDelete(t *testing.T) {
	store, mock := newPGStoreTest(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`delete from link_sources where id=\$1`).
		WithArgs("ls1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow("ls1", "newsletter", now, now))

	ls, err := store.Delete(context.Background(), "ls1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ls.Name != "newsletter" {
		t.Fatalf("delete must return the removed record: %+v", ls)
	}
}
