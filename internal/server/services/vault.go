// Package services contains server-side business logic. This file implements
// VaultService, the access layer over the metadata store (folders and vault
// entries) and the object store (uploaded file blobs).
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dsmirnov/vaultkeeper/internal/common"
	"github.com/dsmirnov/vaultkeeper/internal/dbx"
	"github.com/dsmirnov/vaultkeeper/internal/filex"
	"github.com/dsmirnov/vaultkeeper/internal/server/config"
	"github.com/dsmirnov/vaultkeeper/internal/server/models"
	"github.com/dsmirnov/vaultkeeper/internal/server/objectstore"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/entries"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// newStorageID is a seam so tests can pin the random part of storage keys.
var newStorageID = uuid.NewString

// DefaultFileCategory is assigned to uploaded entries when the caller does
// not supply a category.
const DefaultFileCategory = "file"

// NoteParams are the caller-supplied fields for a new text note. Values are
// expected validated and trimmed by the caller.
type NoteParams struct {
	Title    string
	Content  string
	FolderID *string
	Category *string
}

// FileUpload describes one file to store: raw bytes plus the original name
// and content type, and optional entry metadata.
type FileUpload struct {
	FileName    string
	ContentType string
	Data        []byte
	Title       string
	FolderID    *string
	Category    *string
}

// VaultService orchestrates the metadata store and the object store. The
// upload and delete-file sequences span both systems with no transaction
// across them; the ordering below bounds the damage of a mid-sequence
// failure (see the method comments).
type VaultService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	store        objectstore.ObjectStore
	signedURLTTL time.Duration
}

// NewVaultService constructs a VaultService. The object store is injected so
// tests can substitute a double.
func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, store objectstore.ObjectStore, cfg *config.Config) *VaultService {
	return &VaultService{
		db:           db,
		repomanager:  m,
		store:        store,
		signedURLTTL: cfg.SignedURLValidityDuration,
	}
}

// CreateFolder inserts a folder for the user and returns the persisted
// record with server-assigned id and timestamps.
func (s *VaultService) CreateFolder(ctx context.Context, userID string, folderName string) (*models.Folder, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	return s.repomanager.Folders(s.db).Create(ctx, userID, folderName)
}

// ListFolders returns the user's folders, newest created first.
func (s *VaultService) ListFolders(ctx context.Context, userID string) ([]*models.Folder, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	return s.repomanager.Folders(s.db).List(ctx, userID)
}

// DeleteFolder removes a folder. Entries referencing it are re-parented to
// the root (folder_id nulled) in the same transaction, so the delete never
// leaves dangling references behind.
func (s *VaultService) DeleteFolder(ctx context.Context, userID string, folderID string) error {
	if userID == "" {
		return common.ErrAuthenticationRequired
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Entries(tx).ClearFolderRefs(ctx, userID, folderID); err != nil {
			return fmt.Errorf("re-parenting entries: %w", err)
		}
		return s.repomanager.Folders(tx).Delete(ctx, userID, folderID)
	})
}

// ListEntries returns the user's entries, newest created first. A non-nil
// folderID restricts the result to that folder; nil spans all folders
// (including folder-less entries).
func (s *VaultService) ListEntries(ctx context.Context, userID string, folderID *string) ([]*models.VaultEntry, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	return s.repomanager.Entries(s.db).List(ctx, userID, folderID)
}

// GetEntry returns one entry by id.
func (s *VaultService) GetEntry(ctx context.Context, userID string, id string) (*models.VaultEntry, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	return s.repomanager.Entries(s.db).Get(ctx, userID, id)
}

// CreateNote inserts a note-variant entry: the payload lives in Content and
// no file info is attached.
func (s *VaultService) CreateNote(ctx context.Context, userID string, params NoteParams) (*models.VaultEntry, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	content := params.Content
	entry := &models.VaultEntry{
		Title:    params.Title,
		Content:  &content,
		Category: params.Category,
		FolderID: params.FolderID,
		UserID:   userID,
	}
	return s.repomanager.Entries(s.db).Create(ctx, entry)
}

// UpdateEntry applies a partial mutation to an entry and returns the
// updated record.
func (s *VaultService) UpdateEntry(ctx context.Context, userID string, id string, upd entries.Update) (*models.VaultEntry, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	if upd.Empty() {
		return s.repomanager.Entries(s.db).Get(ctx, userID, id)
	}
	return s.repomanager.Entries(s.db).Update(ctx, userID, id, upd)
}

// DeleteEntry removes an entry's metadata record. For file-variant entries
// use DeleteFile, which removes the blob as well.
func (s *VaultService) DeleteEntry(ctx context.Context, userID string, id string) error {
	if userID == "" {
		return common.ErrAuthenticationRequired
	}
	return s.repomanager.Entries(s.db).Delete(ctx, userID, id)
}

// UploadFile stores the blob and then inserts the file-variant entry
// referencing it:
//
//  1. generate a unique storage key {user_id}/{uuid}.{ext}
//  2. upload the bytes, non-overwriting
//  3. presign a GET URL for the key
//  4. insert the metadata record
//
// A failure before step 4 leaves no metadata record. A failure in step 4
// after a successful upload orphans the blob: the error surfaces to the
// caller and no compensation runs.
func (s *VaultService) UploadFile(ctx context.Context, userID string, up FileUpload) (*models.VaultEntry, error) {
	if userID == "" {
		return nil, common.ErrAuthenticationRequired
	}

	fileName := filex.BaseName(up.FileName)
	key := storageKey(userID, fileName)

	if err := s.store.Upload(ctx, key, up.Data, up.ContentType); err != nil {
		return nil, fmt.Errorf("uploading blob: %w", err)
	}

	signedURL, err := s.store.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("signing url: %w", err)
	}

	title := up.Title
	if title == "" {
		title = fileName
	}
	category := up.Category
	if category == nil {
		c := DefaultFileCategory
		category = &c
	}
	size := int64(len(up.Data))

	entry := &models.VaultEntry{
		Title:    title,
		Category: category,
		FolderID: up.FolderID,
		FileInfo: &models.FileInfo{
			FileName:    fileName,
			ContentType: up.ContentType,
			StoragePath: key,
			SignedURL:   signedURL,
		},
		FileSize: &size,
		UserID:   userID,
	}
	created, err := s.repomanager.Entries(s.db).Create(ctx, entry)
	if err != nil {
		// Blob already stored; the record insert failed, so the blob is
		// orphaned. Surfaced as-is, no compensation.
		return nil, fmt.Errorf("creating file entry: %w", err)
	}
	return created, nil
}

// DeleteFile removes both halves of a file-variant entry: the blob first,
// then the metadata record. When the blob delete fails the record stays
// intact so the user can retry; when the record delete fails after the blob
// is gone, the entry keeps pointing at a missing blob.
func (s *VaultService) DeleteFile(ctx context.Context, userID string, storagePath string, entryID string) error {
	if userID == "" {
		return common.ErrAuthenticationRequired
	}

	if err := s.store.Delete(ctx, storagePath); err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}

	return s.repomanager.Entries(s.db).Delete(ctx, userID, entryID)
}

// FileURL returns a fresh signed URL for the given storage path. Every call
// produces a new URL with a new expiry; nothing is cached.
func (s *VaultService) FileURL(ctx context.Context, userID string, storagePath string) (string, error) {
	if userID == "" {
		return "", common.ErrAuthenticationRequired
	}
	return s.store.SignedURL(ctx, storagePath, s.signedURLTTL)
}

// storageKey builds the object storage key for a new upload. The random id
// comes first from the generator, never from the file name, so repeated
// uploads of identically named files land on distinct keys.
func storageKey(userID, fileName string) string {
	id := newStorageID()
	if ext := filex.Ext(fileName); ext != "" {
		return fmt.Sprintf("%s/%s.%s", userID, id, ext)
	}
	return fmt.Sprintf("%s/%s", userID, id)
}
