package entries

import (
	"context"

	"github.com/dsmirnov/vaultkeeper/internal/server/models"
)

// Update describes a partial entry mutation. Nil pointer fields are left
// unchanged; the Clear flags null a column explicitly (moving an entry back
// to the root, dropping its category).
type Update struct {
	Title         *string
	Content       *string
	Category      *string
	FolderID      *string
	ClearCategory bool
	ClearFolderID bool
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Category == nil &&
		u.FolderID == nil && !u.ClearCategory && !u.ClearFolderID
}

type Repository interface {
	// Create inserts an entry (note or file variant) and returns it with
	// server-assigned id and timestamps.
	Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error)

	// List returns the user's entries, newest created first. A non-nil
	// folderID restricts the result to that folder.
	List(ctx context.Context, userID string, folderID *string) ([]*models.VaultEntry, error)

	// Get returns the user's entry by id, or common.ErrorNotFound.
	Get(ctx context.Context, userID string, id string) (*models.VaultEntry, error)

	// Update applies a partial mutation and returns the updated record.
	Update(ctx context.Context, userID string, id string, upd Update) (*models.VaultEntry, error)

	// Delete removes the user's entry by id, common.ErrorNotFound when absent.
	Delete(ctx context.Context, userID string, id string) error

	// ClearFolderRefs re-parents all of the user's entries out of folderID
	// (folder_id becomes NULL) and returns the number of affected rows.
	ClearFolderRefs(ctx context.Context, userID string, folderID string) (int64, error)
}
