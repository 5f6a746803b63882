package refreshtokens

import (
	"context"
	"time"

	"github.com/dsmirnov/vaultkeeper/internal/server/models"
)

type Repository interface {
	// Create stores a refresh token for userID expiring after validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns the stored token row or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string.
	Delete(ctx context.Context, token string) error
}
