// Package folders provides a PostgreSQL-backed repository for vault folders.
package folders

import (
	"context"
	"fmt"

	"github.com/dsmirnov/vaultkeeper/internal/common"
	"github.com/dsmirnov/vaultkeeper/internal/dbx"
	"github.com/dsmirnov/vaultkeeper/internal/server/models"
)

// PostgresRepository implements folder storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a folder owned by userID and returns the persisted record.
func (r *PostgresRepository) Create(ctx context.Context, userID string, folderName string) (*models.Folder, error) {
	query := `
		INSERT INTO folders (folder_name, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	folder := &models.Folder{FolderName: folderName, UserID: userID}
	err := r.db.QueryRowContext(ctx, query, folderName, userID).
		Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

// List returns all folders for userID ordered by creation time, newest first.
// The descending order is a contract the UI relies on.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Folder, error) {
	query := `
		SELECT id, folder_name, user_id, created_at, updated_at FROM folders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		var item models.Folder
		if err := rows.Scan(&item.ID, &item.FolderName, &item.UserID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the folder by id, scoped to userID. Returns
// common.ErrorNotFound when no row was deleted.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, id string) error {
	query := `
		DELETE FROM folders
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
