package models

import "time"

// FileInfo describes the object-storage half of a file-backed entry.
// StoragePath is the only link between the metadata record and the blob;
// losing it orphans the blob.
type FileInfo struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	StoragePath string `json:"storagePath"`
	SignedURL   string `json:"signedUrl"`
}

// VaultEntry is a user-owned record representing either a text note or a
// reference to an uploaded file. Exactly one of the two variants applies:
// a note keeps its payload in Content and has no FileInfo; a file-backed
// entry carries FileInfo (and FileSize) and leaves Content unused.
type VaultEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Category  *string   `json:"category"`
	FolderID  *string   `json:"folder_id"`
	FileInfo  *FileInfo `json:"file_info"`
	FileSize  *int64    `json:"file_size"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFile reports whether the entry is the file variant.
func (e *VaultEntry) IsFile() bool {
	return e.FileInfo != nil
}
