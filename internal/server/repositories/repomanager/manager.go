package repomanager

import (
	"context"
	"database/sql"

	"github.com/dsmirnov/vaultkeeper/internal/dbx"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/entries"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/folders"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/refreshtokens"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, letting services use
// the same repository code inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Folders(db dbx.DBTX) folders.Repository
	Entries(db dbx.DBTX) entries.Repository
}
