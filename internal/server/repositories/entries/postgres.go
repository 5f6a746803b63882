// Package entries provides a PostgreSQL-backed repository for vault entries,
// covering both note and file-backed variants.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dsmirnov/vaultkeeper/internal/common"
	"github.com/dsmirnov/vaultkeeper/internal/dbx"
	"github.com/dsmirnov/vaultkeeper/internal/server/models"
)

const entryColumns = "id, title, content, category, folder_id, file_info, file_size, user_id, created_at, updated_at"

// PostgresRepository implements entry storage over a dbx.DBTX
// (*sql.DB or *sql.Tx). FileInfo is persisted as a jsonb column.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an entry and returns it with the server-assigned id and
// timestamps reflected.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error) {
	fileInfo, err := marshalFileInfo(entry.FileInfo)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO vault_entries (title, content, category, folder_id, file_info, file_size, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		entry.Title, entry.Content, entry.Category, entry.FolderID, fileInfo, entry.FileSize, entry.UserID).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// List returns entries for userID ordered by creation time, newest first.
// A non-nil folderID restricts the result to entries of that folder.
func (r *PostgresRepository) List(ctx context.Context, userID string, folderID *string) ([]*models.VaultEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM vault_entries WHERE user_id = $1`
	args := []any{userID}
	if folderID != nil {
		query += " AND folder_id = $2"
		args = append(args, *folderID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultEntry
	for rows.Next() {
		item, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the entry by id, scoped to userID, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string, id string) (*models.VaultEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM vault_entries
		WHERE id = $1 AND user_id = $2
	`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id, userID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// Update applies the partial mutation upd to the entry and returns the
// updated record. Returns common.ErrorNotFound when the entry does not exist
// (or belongs to another user).
func (r *PostgresRepository) Update(ctx context.Context, userID string, id string, upd Update) (*models.VaultEntry, error) {
	set := []string{"updated_at = now()"}
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	switch {
	case upd.ClearCategory:
		set = append(set, "category = NULL")
	case upd.Category != nil:
		add("category", *upd.Category)
	}
	switch {
	case upd.ClearFolderID:
		set = append(set, "folder_id = NULL")
	case upd.FolderID != nil:
		add("folder_id", *upd.FolderID)
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(`
		UPDATE vault_entries SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING `+entryColumns,
		strings.Join(set, ", "), len(args)-1, len(args))

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// Delete removes the entry by id, scoped to userID. Returns
// common.ErrorNotFound when no row was deleted.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, id string) error {
	query := `
		DELETE FROM vault_entries
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ClearFolderRefs nulls folder_id on every entry of userID referencing
// folderID. Runs before the folder row itself is deleted, in the same
// transaction.
func (r *PostgresRepository) ClearFolderRefs(ctx context.Context, userID string, folderID string) (int64, error) {
	query := `
		UPDATE vault_entries SET folder_id = NULL
		WHERE folder_id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, folderID, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func marshalFileInfo(fi *models.FileInfo) ([]byte, error) {
	if fi == nil {
		return nil, nil
	}
	data, err := json.Marshal(fi)
	if err != nil {
		return nil, fmt.Errorf("marshal file_info: %w", err)
	}
	return data, nil
}

// scanEntry reads one entry row via the given scan function, decoding the
// jsonb file_info column into models.FileInfo.
func scanEntry(scan func(dest ...any) error) (*models.VaultEntry, error) {
	var item models.VaultEntry
	var fileInfo []byte

	err := scan(&item.ID, &item.Title, &item.Content, &item.Category, &item.FolderID,
		&fileInfo, &item.FileSize, &item.UserID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(fileInfo) > 0 {
		fi := &models.FileInfo{}
		if err := json.Unmarshal(fileInfo, fi); err != nil {
			return nil, fmt.Errorf("unmarshal file_info: %w", err)
		}
		item.FileInfo = fi
	}
	return &item, nil
}
