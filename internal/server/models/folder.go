// Package models defines server-side data models persisted in the database.
package models

import "time"

// Folder is a user-owned grouping container for vault entries.
// Folders are immutable after creation; only create/list/delete exist.
type Folder struct {
	ID         string    `json:"id"`
	FolderName string    `json:"folder_name"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
