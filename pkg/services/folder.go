package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/tgdrive/clouddrive/pkg/mapper"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
)

const (
	// maxDepth bounds every walk up the parent chain.
	maxDepth = 256
	// childLimit caps the files returned with a folder's children.
	childLimit = 1000
)

type FolderService struct {
	store store.Store
	now   Clock
}

func (s *FolderService) Create(ctx context.Context, ownerID string, in *schemas.CreateFolder) (*schemas.FolderOut, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	parentID := folderRef(in.ParentID)
	if err := s.validateParent(ctx, ownerID, "", parentID); err != nil {
		return nil, err
	}
	now := s.now()
	f := &models.Folder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateFolder(ctx, f); err != nil {
		return nil, storeErr(err, "folder "+name)
	}
	out := mapper.ToFolderOut(*f)
	return &out, nil
}

// validateParent checks that parentID names an existing folder of the owner
// and that folderID is not among its ancestors.
func (s *FolderService) validateParent(ctx context.Context, ownerID, folderID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	cur := *parentID
	for range maxDepth {
		if cur == folderID {
			return fail(ErrInvalidParent, "folder cannot be moved into itself or a descendant")
		}
		f, err := s.store.GetFolder(ctx, cur, ownerID)
		if errors.Is(err, store.ErrNotFound) {
			return fail(ErrInvalidParent, "parent folder %s does not exist", cur)
		}
		if err != nil {
			return storeErr(err, "folder")
		}
		if f.ParentID == nil {
			return nil
		}
		cur = *f.ParentID
	}
	return fail(ErrInvalidParent, "folder hierarchy is too deep")
}

func (s *FolderService) get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	f, err := s.store.GetFolder(ctx, id, ownerID)
	if err != nil {
		return nil, storeErr(err, "folder "+id)
	}
	return f, nil
}

func (s *FolderService) Get(ctx context.Context, ownerID, id string) (*schemas.FolderOut, error) {
	f, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	out := mapper.ToFolderOut(*f)
	return &out, nil
}

// ResolvePath returns the ancestors of a folder from the root down to the
// folder itself. The root sentinel has an empty path.
func (s *FolderService) ResolvePath(ctx context.Context, ownerID, id string) ([]models.Folder, error) {
	if id == RootID {
		return []models.Folder{}, nil
	}
	var path []models.Folder
	seen := map[string]bool{}
	cur := id
	for range maxDepth {
		f, err := s.store.GetFolder(ctx, cur, ownerID)
		if err != nil {
			if len(path) > 0 && errors.Is(err, store.ErrNotFound) {
				break
			}
			return nil, storeErr(err, "folder "+cur)
		}
		seen[f.ID] = true
		path = append(path, *f)
		if f.ParentID == nil || seen[*f.ParentID] {
			break
		}
		cur = *f.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *FolderService) Path(ctx context.Context, ownerID, id string) (*schemas.FolderPath, error) {
	path, err := s.ResolvePath(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &schemas.FolderPath{Path: mapper.ToFolderOuts(path)}, nil
}

// ListChildren returns the direct child folders and active files of a folder.
func (s *FolderService) ListChildren(ctx context.Context, ownerID, id string) (*schemas.FolderContents, error) {
	res := &schemas.FolderContents{Path: []schemas.FolderOut{}}
	folderFilter := store.FolderFilter{OwnerID: ownerID, RootOnly: true}
	active := models.StateActive
	fileFilter := store.FileFilter{OwnerID: ownerID, Status: &active, Folder: store.FolderScope{RootOnly: true}}

	if id != RootID {
		path, err := s.ResolvePath(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		self := mapper.ToFolderOut(path[len(path)-1])
		res.Folder = &self
		res.Path = mapper.ToFolderOuts(path)
		folderFilter = store.FolderFilter{OwnerID: ownerID, ParentID: &id}
		fileFilter.Folder = store.FolderScope{FolderID: &id}
	}

	folders, err := s.store.ListFolders(ctx, folderFilter)
	if err != nil {
		return nil, storeErr(err, "folders")
	}
	files, _, err := s.store.ListFiles(ctx, fileFilter, store.Page{Limit: childLimit})
	if err != nil {
		return nil, storeErr(err, "files")
	}
	res.Folders = mapper.ToFolderOuts(folders)
	res.Files = mapper.ToFileOuts(files)
	return res, nil
}

// List returns the owner's folders; parentID narrows it to one level.
func (s *FolderService) List(ctx context.Context, ownerID string, parentID *string) (*schemas.FolderList, error) {
	filter := store.FolderFilter{OwnerID: ownerID}
	switch {
	case parentID == nil || *parentID == "":
	case *parentID == RootID:
		filter.RootOnly = true
	default:
		if _, err := s.get(ctx, ownerID, *parentID); err != nil {
			return nil, err
		}
		filter.ParentID = parentID
	}
	folders, err := s.store.ListFolders(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "folders")
	}
	return &schemas.FolderList{Folders: mapper.ToFolderOuts(folders)}, nil
}

func (s *FolderService) Update(ctx context.Context, ownerID, id string, in *schemas.UpdateFolder) (*schemas.FolderOut, error) {
	if in.Name == nil && in.ParentID == nil {
		return nil, fail(ErrInvalidInput, "nothing to update")
	}
	if _, err := s.get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	patch := models.FolderPatch{UpdatedAt: s.now()}
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if in.ParentID != nil {
		parentID := folderRef(in.ParentID)
		if parentID == nil {
			patch.MoveToRoot = true
		} else {
			if err := s.validateParent(ctx, ownerID, id, parentID); err != nil {
				return nil, err
			}
			patch.ParentID = parentID
		}
	}
	f, err := s.store.UpdateFolder(ctx, id, ownerID, patch)
	if err != nil {
		return nil, storeErr(err, "folder")
	}
	out := mapper.ToFolderOut(*f)
	return &out, nil
}

// Delete removes an empty folder. Trashed files keep their stale reference
// and are restored to the root.
func (s *FolderService) Delete(ctx context.Context, ownerID, id string) error {
	return storeErr(s.store.DeleteFolder(ctx, id, ownerID), "folder "+id)
}
