package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/utils"
	"github.com/tgdrive/clouddrive/pkg/mapper"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type ListService struct {
	store   store.Store
	folders *FolderService
	now     Clock
}

// ListParams select one page of files. A nil FolderID lists every file of
// the owner; RootID lists files without a folder.
type ListParams struct {
	FolderID       *string
	Page           int
	Limit          int
	IncludeDeleted bool
	// AsOf pins the result set for stable paging. Zero means now.
	AsOf time.Time
}

func checkPage(page, limit int) error {
	if page < 1 {
		return fail(ErrInvalidQuery, "page must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		return fail(ErrInvalidQuery, "limit must be between 1 and %d", MaxLimit)
	}
	return nil
}

func (s *ListService) scope(ctx context.Context, ownerID string, folderID *string) (store.FolderScope, error) {
	switch {
	case folderID == nil || *folderID == "":
		return store.FolderScope{}, nil
	case *folderID == RootID:
		return store.FolderScope{RootOnly: true}, nil
	}
	if _, err := s.folders.get(ctx, ownerID, *folderID); err != nil {
		return store.FolderScope{}, err
	}
	return store.FolderScope{FolderID: folderID}, nil
}

func (s *ListService) List(ctx context.Context, ownerID string, p ListParams) (*schemas.FileList, error) {
	if err := checkPage(p.Page, p.Limit); err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, ownerID, p.FolderID)
	if err != nil {
		return nil, err
	}
	filter := store.FileFilter{OwnerID: ownerID, Folder: scope}
	if !p.IncludeDeleted {
		active := models.StateActive
		filter.Status = &active
	}
	return s.page(ctx, filter, p.Page, p.Limit, p.AsOf)
}

// Trash lists the owner's trashed files across all folders.
func (s *ListService) Trash(ctx context.Context, ownerID string, page, limit int, asOf time.Time) (*schemas.FileList, error) {
	if err := checkPage(page, limit); err != nil {
		return nil, err
	}
	trashed := models.StateTrashed
	return s.page(ctx, store.FileFilter{OwnerID: ownerID, Status: &trashed}, page, limit, asOf)
}

func (s *ListService) page(ctx context.Context, filter store.FileFilter, page, limit int, asOf time.Time) (*schemas.FileList, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC()
	filter.AsOf = &asOf
	files, total, err := s.store.ListFiles(ctx, filter, store.Page{Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fail(ErrNotFound, "folder")
		}
		return nil, storeErr(err, "files")
	}
	return &schemas.FileList{
		Files: mapper.ToFileOuts(files),
		Pagination: schemas.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: utils.CeilDiv(total, limit),
			AsOf:       &asOf,
		},
	}, nil
}
