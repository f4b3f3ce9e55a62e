// Package store persists file, folder, share link and orphan blob metadata.
// Every owner-scoped call treats records of other owners as missing.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
	ErrNotEmpty = errors.New("folder not empty")
	// ErrStateMismatch is returned when a conditional write finds the record
	// in another lifecycle state.
	ErrStateMismatch = errors.New("record state mismatch")
)

// FolderScope narrows a file listing to a folder.
type FolderScope struct {
	// RootOnly selects files without a folder.
	RootOnly bool
	FolderID *string
}

type FileFilter struct {
	OwnerID      string
	Status       *models.FileState
	Folder       FolderScope
	NameContains string
	Category     string
	SizeMin      *int64
	SizeMax      *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	// AsOf excludes rows created after it.
	AsOf *time.Time
}

type Page struct {
	Offset int
	Limit  int
}

// Transition is a compare-and-set on a file status.
type Transition struct {
	From        models.FileState
	To          models.FileState
	At          time.Time
	ClearFolder bool
}

// TrashCursor is the (updated_at, id) of the last row seen by a trash walk.
// The zero value starts from the beginning.
type TrashCursor struct {
	UpdatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned after f.
func CursorAfter(f models.File) TrashCursor {
	return TrashCursor{UpdatedAt: f.UpdatedAt, ID: f.ID}
}

func (c TrashCursor) before(f models.File) bool {
	if c.ID == "" {
		return true
	}
	if cmp := c.UpdatedAt.Compare(f.UpdatedAt); cmp != 0 {
		return cmp < 0
	}
	return c.ID < f.ID
}

type FolderFilter struct {
	OwnerID  string
	ParentID *string
	RootOnly bool
}

type FileStore interface {
	CreateFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, id, ownerID string) (*models.File, error)
	// UpdateFile applies a rename or move to an active file.
	UpdateFile(ctx context.Context, id, ownerID string, patch models.FilePatch) (*models.File, error)
	TransitionFile(ctx context.Context, id, ownerID string, t Transition) (*models.File, error)
	// DeleteFile removes a trashed file and its share links. A non-zero
	// trashedBefore also requires updated_at to be older than it.
	DeleteFile(ctx context.Context, id, ownerID string, trashedBefore time.Time) (*models.File, error)
	ListFiles(ctx context.Context, filter FileFilter, page Page) ([]models.File, int, error)
	// ExpiredTrash returns trashed files last changed before the cutoff,
	// ordered by (updated_at, id) and starting after the cursor.
	ExpiredTrash(ctx context.Context, before time.Time, after TrashCursor, limit int) ([]models.File, error)
	// ScanFiles walks every file ordered by id, starting after afterID.
	ScanFiles(ctx context.Context, afterID string, limit int) ([]models.File, error)
}

type FolderStore interface {
	CreateFolder(ctx context.Context, f *models.Folder) error
	GetFolder(ctx context.Context, id, ownerID string) (*models.Folder, error)
	ListFolders(ctx context.Context, filter FolderFilter) ([]models.Folder, error)
	UpdateFolder(ctx context.Context, id, ownerID string, patch models.FolderPatch) (*models.Folder, error)
	// DeleteFolder removes a folder with no child folders and no active files.
	DeleteFolder(ctx context.Context, id, ownerID string) error
}

type ShareStore interface {
	CreateShare(ctx context.Context, s *models.ShareLink) error
	GetShare(ctx context.Context, id string) (*models.ShareLink, error)
	ListShares(ctx context.Context, ownerID string, fileID *string) ([]models.ShareLink, error)
	RevokeShare(ctx context.Context, id, ownerID string, at time.Time) (*models.ShareLink, error)
	// PruneShares deletes links that expired or were revoked before the cutoff.
	PruneShares(ctx context.Context, before time.Time) (int, error)
}

type OrphanStore interface {
	AddOrphan(ctx context.Context, o models.OrphanBlob) error
	ListOrphans(ctx context.Context, limit int) ([]models.OrphanBlob, error)
	DeleteOrphan(ctx context.Context, path string) error
	MarkOrphanFailed(ctx context.Context, path, lastError string) error
}

type Store interface {
	FileStore
	FolderStore
	ShareStore
	OrphanStore
	Stats(ctx context.Context, ownerID string) (*models.Stats, error)
}

// FirstID sorts before every id passed to ScanFiles.
const FirstID = "00000000-0000-0000-0000-000000000000"
