package folders

import (
	"context"

	"github.com/dsmirnov/vaultkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a folder and returns it with server-assigned id and
	// timestamps.
	Create(ctx context.Context, userID string, folderName string) (*models.Folder, error)

	// List returns the user's folders, newest created first.
	List(ctx context.Context, userID string) ([]*models.Folder, error)

	// Delete removes the user's folder by id, common.ErrorNotFound when absent.
	Delete(ctx context.Context, userID string, id string) error
}
