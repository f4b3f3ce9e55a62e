package models

import (
	"time"
)

// FileState is the lifecycle state of a file. StatePurged is terminal and
// never stored: a purged file has no row.
type FileState string

const (
	StateActive  FileState = "active"
	StateTrashed FileState = "trashed"
	StatePurged  FileState = "purged"
)

type File struct {
	ID        string
	OwnerID   string
	Name      string
	Size      int64
	MimeType  string
	Category  string
	BlobPath  string
	Hash      string
	FolderID  *string
	Status    FileState
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f *File) Trashed() bool {
	return f.Status == StateTrashed
}

// FilePatch holds rename and move changes. A nil field is left unchanged;
// MoveToRoot clears the folder.
type FilePatch struct {
	Name       *string
	FolderID   *string
	MoveToRoot bool
	UpdatedAt  time.Time
}

// OrphanBlob is a stored blob without a live metadata row.
type OrphanBlob struct {
	Path      string
	Reason    string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

const (
	OrphanMetadataWrite = "metadata_write_failed"
	OrphanPurge         = "purge_delete_failed"
	OrphanCheck         = "unreferenced"
)
