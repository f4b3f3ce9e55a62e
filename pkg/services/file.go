package services

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/cache"
	"github.com/tgdrive/clouddrive/internal/category"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/hash"
	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/pkg/mapper"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsTTL = 30 * time.Second

type FileService struct {
	store   store.Store
	blob    blob.Store
	cache   cache.Cacher
	folders *FolderService
	access  *AccessSigner
	storage *config.StorageConfig
	trash   *config.TrashConfig
	now     Clock
	logger  *zap.Logger
}

type UploadInput struct {
	Name     string
	FolderID *string
	// MimeType is the client supplied type, used when sniffing is inconclusive.
	MimeType string
	// Size is the declared content length, or -1 when unknown.
	Size    int64
	Content io.ReadSeeker
}

// Upload stores the content and records an active file. The blob is written
// first; when the metadata write fails the blob is queued for reclaim.
func (s *FileService) Upload(ctx context.Context, ownerID string, in *UploadInput) (*schemas.FileOut, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if s.storage.MaxUploadSize > 0 && in.Size > s.storage.MaxUploadSize {
		return nil, fail(ErrInvalidInput, "file exceeds %d bytes", s.storage.MaxUploadSize)
	}
	folderID := folderRef(in.FolderID)
	if folderID != nil {
		if _, err := s.store.GetFolder(ctx, *folderID, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fail(ErrInvalidParent, "folder %s does not exist", *folderID)
			}
			return nil, storeErr(err, "folder")
		}
	}

	mimeType, err := detectMime(in.Content, name, in.MimeType)
	if err != nil {
		return nil, errors.Wrap(err, "detect content type")
	}
	sum, size, err := hash.Sum(in.Content)
	if err != nil {
		return nil, errors.Wrap(err, "hash content")
	}
	if in.Size >= 0 && size != in.Size {
		return nil, fail(ErrInvalidInput, "content length %d does not match declared size %d", size, in.Size)
	}
	if s.storage.MaxUploadSize > 0 && size > s.storage.MaxUploadSize {
		return nil, fail(ErrInvalidInput, "file exceeds %d bytes", s.storage.MaxUploadSize)
	}
	if _, err := in.Content.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "rewind content")
	}

	f := &models.File{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Size:      size,
		MimeType:  mimeType,
		Category:  string(category.GetCategory(name, mimeType)),
		BlobPath:  blob.NewPath(ownerID, s.now()),
		Hash:      sum,
		FolderID:  folderID,
		Status:    models.StateActive,
	}
	if err := s.blob.Put(ctx, f.BlobPath, in.Content, size, mimeType); err != nil {
		return nil, storeErr(err, "blob")
	}
	// created_at must postdate any listing snapshot taken during the transfer
	f.CreatedAt = s.now()
	f.UpdatedAt = f.CreatedAt
	if err := s.store.CreateFile(ctx, f); err != nil {
		s.orphan(ctx, f.BlobPath, models.OrphanMetadataWrite, err)
		return nil, storeErr(err, "file")
	}
	s.invalidateStats(ctx, ownerID)
	logging.FromContext(ctx).Debug("file uploaded",
		zap.String("id", f.ID), zap.Int64("size", size), zap.String("mime", mimeType))
	out := mapper.ToFileOut(*f)
	return &out, nil
}

func detectMime(r io.ReadSeeker, name, declared string) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	detected := mt.String()
	if !mt.Is("application/octet-stream") && !mt.Is("text/plain") {
		return detected, nil
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt, nil
	}
	if declared != "" {
		return declared, nil
	}
	return detected, nil
}

// orphan records a blob that lost its metadata row so the reclaim job can
// remove it later.
func (s *FileService) orphan(ctx context.Context, path, reason string, cause error) {
	ctx = context.WithoutCancel(ctx)
	o := models.OrphanBlob{Path: path, Reason: reason, CreatedAt: s.now()}
	if cause != nil {
		o.LastError = cause.Error()
	}
	if err := s.store.AddOrphan(ctx, o); err != nil {
		logging.FromContext(ctx).Error("record orphan blob",
			zap.String("path", path), zap.String("reason", reason), zap.Error(err))
	}
}

func (s *FileService) invalidateStats(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, cache.KeyStats(ownerID))
}

func (s *FileService) get(ctx context.Context, ownerID, id string) (*models.File, error) {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return nil, storeErr(err, "file "+id)
	}
	return f, nil
}

func (s *FileService) Get(ctx context.Context, ownerID, id string) (*schemas.FileOut, error) {
	f, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	out := mapper.ToFileOut(*f)
	return &out, nil
}

// Update renames or moves an active file.
func (s *FileService) Update(ctx context.Context, ownerID, id string, in *schemas.UpdateFile) (*schemas.FileOut, error) {
	if in.Name == nil && in.FolderID == nil {
		return nil, fail(ErrInvalidInput, "nothing to update")
	}
	patch := models.FilePatch{UpdatedAt: s.now()}
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if in.FolderID != nil {
		folderID := folderRef(in.FolderID)
		if folderID == nil {
			patch.MoveToRoot = true
		} else {
			if _, err := s.store.GetFolder(ctx, *folderID, ownerID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, fail(ErrInvalidParent, "folder %s does not exist", *folderID)
				}
				return nil, storeErr(err, "folder")
			}
			patch.FolderID = folderID
		}
	}
	f, err := s.store.UpdateFile(ctx, id, ownerID, patch)
	if errors.Is(err, store.ErrStateMismatch) {
		return nil, fail(ErrInvalidState, "file %s is in the trash", id)
	}
	if err != nil {
		return nil, storeErr(err, "file "+id)
	}
	out := mapper.ToFileOut(*f)
	return &out, nil
}

// SoftDelete moves an active file to the trash. Trashing a trashed file is a
// no-op.
func (s *FileService) SoftDelete(ctx context.Context, ownerID, id string) (*schemas.FileOut, error) {
	f, err := s.store.TransitionFile(ctx, id, ownerID, store.Transition{
		From: models.StateActive,
		To:   models.StateTrashed,
		At:   s.now(),
	})
	if errors.Is(err, store.ErrStateMismatch) {
		f, err = s.store.GetFile(ctx, id, ownerID)
	}
	if err != nil {
		return nil, storeErr(err, "file "+id)
	}
	s.invalidateStats(ctx, ownerID)
	out := mapper.ToFileOut(*f)
	return &out, nil
}

// Restore brings a trashed file back under its original folder, or the root
// when that folder no longer exists. Restoring an active file is a no-op.
func (s *FileService) Restore(ctx context.Context, ownerID, id string) (*schemas.FileOut, error) {
	cur, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !cur.Trashed() {
		out := mapper.ToFileOut(*cur)
		return &out, nil
	}
	clearFolder := false
	if cur.FolderID != nil {
		_, err := s.store.GetFolder(ctx, *cur.FolderID, ownerID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			clearFolder = true
		case err != nil:
			return nil, storeErr(err, "folder")
		}
	}
	f, err := s.store.TransitionFile(ctx, id, ownerID, store.Transition{
		From:        models.StateTrashed,
		To:          models.StateActive,
		At:          s.now(),
		ClearFolder: clearFolder,
	})
	if errors.Is(err, store.ErrStateMismatch) {
		f, err = s.store.GetFile(ctx, id, ownerID)
	}
	if err != nil {
		return nil, storeErr(err, "file "+id)
	}
	s.invalidateStats(ctx, ownerID)
	out := mapper.ToFileOut(*f)
	return &out, nil
}

// RestoreMany restores each id independently and reports per-id outcomes.
func (s *FileService) RestoreMany(ctx context.Context, ownerID string, ids []string) *schemas.RestoreResults {
	res := &schemas.RestoreResults{Results: make([]schemas.RestoreResult, 0, len(ids))}
	for _, id := range ids {
		r := schemas.RestoreResult{ID: id}
		if _, err := s.Restore(ctx, ownerID, id); err != nil {
			r.Error = Kind(err)
		} else {
			r.Restored = true
		}
		res.Results = append(res.Results, r)
	}
	return res
}

// Purge permanently removes a trashed file and its content.
func (s *FileService) Purge(ctx context.Context, ownerID, id string) error {
	_, err := s.purge(ctx, ownerID, id, time.Time{})
	if errors.Is(err, store.ErrStateMismatch) {
		return fail(ErrInvalidState, "file %s must be in the trash before it is purged", id)
	}
	if err != nil {
		return storeErr(err, "file "+id)
	}
	return nil
}

// purge deletes the row first so the file disappears even when the blob
// backend is down; a failed blob delete is queued as an orphan.
func (s *FileService) purge(ctx context.Context, ownerID, id string, trashedBefore time.Time) (*models.File, error) {
	f, err := s.store.DeleteFile(ctx, id, ownerID, trashedBefore)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, ownerID)
	if err := s.blob.Delete(ctx, f.BlobPath); err != nil {
		logging.FromContext(ctx).Warn("delete blob of purged file",
			zap.String("id", f.ID), zap.String("path", f.BlobPath), zap.Error(err))
		s.orphan(ctx, f.BlobPath, models.OrphanPurge, err)
	}
	return f, nil
}

// EmptyTrash purges every trashed file of the owner, one batch at a time.
// Purged rows leave the trash, so each batch is read from the first page.
func (s *FileService) EmptyTrash(ctx context.Context, ownerID string) (*schemas.PurgeResult, error) {
	trashed := models.StateTrashed
	filter := store.FileFilter{OwnerID: ownerID, Status: &trashed}
	batch := max(s.trash.BatchSize, 1)
	var n atomic.Int64
	for {
		files, _, err := s.store.ListFiles(ctx, filter, store.Page{Limit: batch})
		if err != nil {
			return &schemas.PurgeResult{Purged: int(n.Load())}, storeErr(err, "trash")
		}
		if len(files) == 0 {
			break
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(s.trash.Concurrency, 1))
		for _, f := range files {
			g.Go(func() error {
				_, err := s.purge(gctx, ownerID, f.ID, time.Time{})
				switch {
				case err == nil:
					n.Add(1)
				case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrStateMismatch):
					// restored or purged concurrently
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return &schemas.PurgeResult{Purged: int(n.Load())}, storeErr(err, "trash")
		}
		if len(files) < batch {
			break
		}
	}
	return &schemas.PurgeResult{Purged: int(n.Load())}, nil
}

func (s *FileService) activeFile(ctx context.Context, ownerID, id string) (*models.File, error) {
	f, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if f.Trashed() {
		return nil, fail(ErrInvalidState, "file %s is in the trash", id)
	}
	return f, nil
}

// Preview returns a short-lived inline URL and the viewer kind.
func (s *FileService) Preview(ctx context.Context, ownerID, id string) (*schemas.Preview, error) {
	f, err := s.activeFile(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	a, err := s.access.Issue(ctx, f, true)
	if err != nil {
		return nil, err
	}
	return &schemas.Preview{
		FileType:   category.PreviewKind(f.Name, f.MimeType),
		FileName:   f.Name,
		PreviewURL: a.URL,
		ExpiresAt:  a.ExpiresAt,
	}, nil
}

// DownloadURL returns a short-lived attachment URL.
func (s *FileService) DownloadURL(ctx context.Context, ownerID, id string) (*Access, error) {
	f, err := s.activeFile(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.access.Issue(ctx, f, false)
}

func (s *FileService) Stats(ctx context.Context, ownerID string) (*schemas.Stats, error) {
	load := func() (schemas.Stats, error) {
		st, err := s.store.Stats(ctx, ownerID)
		if err != nil {
			return schemas.Stats{}, storeErr(err, "stats")
		}
		return mapper.ToStats(st), nil
	}
	var (
		st  schemas.Stats
		err error
	)
	if s.cache != nil {
		st, err = cache.Fetch(ctx, s.cache, cache.KeyStats(ownerID), statsTTL, load)
	} else {
		st, err = load()
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
