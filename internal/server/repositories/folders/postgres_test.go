package folders

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dsmirnov/vaultkeeper/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_ReturnsPersistedRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO folders \(folder_name, user_id\)\s+VALUES \(\$1, \$2\)\s+RETURNING id, created_at, updated_at`).
		WithArgs("taxes", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("f1", now, now))

	got, err := repo.Create(context.Background(), "u1", "taxes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "f1" || got.UserID != "u1" || got.FolderName != "taxes" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO folders`).
		WithArgs("taxes", "u1").
		WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), "u1", "taxes")
	if err == nil {
		t.Fatal("expected wrapped db error")
	}
}

func TestList_NewestFirst(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "folder_name", "user_id", "created_at", "updated_at"}).
		AddRow("f2", "new", "u1", now, now).
		AddRow("f1", "old", "u1", now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, folder_name, user_id, created_at, updated_at FROM folders\s+WHERE user_id = \$1\s+ORDER BY created_at DESC, id DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f2" || got[1].ID != "f1" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestList_EmptyResult(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM folders`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "folder_name", "user_id", "created_at", "updated_at"}))

	got, err := repo.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM folders\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs("f1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "u1", "f1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM folders`).
		WithArgs("missing", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "u1", "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}
