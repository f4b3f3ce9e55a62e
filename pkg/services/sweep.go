package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper runs the background maintenance passes: trash expiry, orphan blob
// reclaim and the blob consistency check.
type Sweeper struct {
	files  *FileService
	store  store.Store
	blob   blob.Store
	cfg    *config.TrashConfig
	now    Clock
	logger *zap.Logger
}

type SweepResult struct {
	Scanned int
	Purged  int
	Failed  int
}

func (s *Sweeper) batchSize() int {
	return max(s.cfg.BatchSize, 1)
}

func (s *Sweeper) concurrency() int {
	return max(s.cfg.Concurrency, 1)
}

// ExpirySweep purges files that have been in the trash longer than the
// retention period. A failure on one file is logged and the sweep moves on.
// Files restored or re-trashed after the cutoff are left alone.
func (s *Sweeper) ExpirySweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := s.now().Add(-s.cfg.Retention)
	var cursor store.TrashCursor
	for {
		batch, err := s.store.ExpiredTrash(ctx, cutoff, cursor, s.batchSize())
		if err != nil {
			return res, errors.Wrap(err, "list expired trash")
		}
		if len(batch) == 0 {
			break
		}
		res.Scanned += len(batch)

		var purged, failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency())
		for _, f := range batch {
			g.Go(func() error {
				_, err := s.files.purge(gctx, f.OwnerID, f.ID, cutoff)
				switch {
				case err == nil:
					purged.Add(1)
				case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrStateMismatch):
				case gctx.Err() != nil:
					return gctx.Err()
				default:
					failed.Add(1)
					s.logger.Error("purge expired file",
						zap.String("id", f.ID), zap.String("owner", f.OwnerID), zap.Error(err))
				}
				return nil
			})
		}
		err = g.Wait()
		res.Purged += int(purged.Load())
		res.Failed += int(failed.Load())
		if err != nil {
			return res, err
		}
		if len(batch) < s.batchSize() {
			break
		}
		cursor = store.CursorAfter(batch[len(batch)-1])
	}
	if res.Scanned > 0 {
		s.logger.Info("trash expiry sweep",
			zap.Int("scanned", res.Scanned), zap.Int("purged", res.Purged), zap.Int("failed", res.Failed))
	}
	return res, nil
}

type ReclaimResult struct {
	Deleted int
	Failed  int
}

// ReclaimOrphans deletes blobs that were recorded without a metadata row.
func (s *Sweeper) ReclaimOrphans(ctx context.Context) (ReclaimResult, error) {
	var res ReclaimResult
	orphans, err := s.store.ListOrphans(ctx, s.batchSize())
	if err != nil {
		return res, errors.Wrap(err, "list orphan blobs")
	}
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.blob.Delete(ctx, o.Path); err != nil && !errors.Is(err, blob.ErrNotExist) {
			res.Failed++
			s.logger.Warn("reclaim orphan blob", zap.String("path", o.Path), zap.Int("attempts", o.Attempts+1), zap.Error(err))
			if err := s.store.MarkOrphanFailed(ctx, o.Path, err.Error()); err != nil {
				return res, errors.Wrap(err, "mark orphan blob")
			}
			continue
		}
		if err := s.store.DeleteOrphan(ctx, o.Path); err != nil {
			return res, errors.Wrap(err, "delete orphan record")
		}
		res.Deleted++
	}
	if len(orphans) > 0 {
		s.logger.Info("orphan reclaim", zap.Int("deleted", res.Deleted), zap.Int("failed", res.Failed))
	}
	return res, nil
}

type SizeMismatch struct {
	File   models.File
	Actual int64
}

// BlobReport lists files whose content is missing or has the wrong size.
type BlobReport struct {
	Scanned    int
	Missing    []models.File
	Mismatched []SizeMismatch
}

func (r *BlobReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// VerifyBlobs stats the blob of every file and reports inconsistencies.
func (s *Sweeper) VerifyBlobs(ctx context.Context) (*BlobReport, error) {
	report := &BlobReport{}
	var mu sync.Mutex
	after := store.FirstID
	for {
		files, err := s.store.ScanFiles(ctx, after, s.batchSize())
		if err != nil {
			return report, errors.Wrap(err, "scan files")
		}
		if len(files) == 0 {
			break
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency())
		for _, f := range files {
			g.Go(func() error {
				size, err := s.blob.Stat(gctx, f.BlobPath)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, blob.ErrNotExist):
					report.Missing = append(report.Missing, f)
				case err != nil:
					return errors.Wrapf(err, "stat blob of %s", f.ID)
				case size != f.Size:
					report.Mismatched = append(report.Mismatched, SizeMismatch{File: f, Actual: size})
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
		report.Scanned += len(files)
		after = files[len(files)-1].ID
		if len(files) < s.batchSize() {
			break
		}
	}
	return report, nil
}

// DropMissing removes the metadata of a file whose blob is gone. Active files
// are trashed first so the delete goes through the normal lifecycle.
func (s *Sweeper) DropMissing(ctx context.Context, f models.File) error {
	if f.Status == models.StateActive {
		_, err := s.store.TransitionFile(ctx, f.ID, f.OwnerID, store.Transition{
			From: models.StateActive,
			To:   models.StateTrashed,
			At:   s.now(),
		})
		if err != nil && !errors.Is(err, store.ErrStateMismatch) {
			return storeErr(err, "file "+f.ID)
		}
	}
	if _, err := s.store.DeleteFile(ctx, f.ID, f.OwnerID, time.Time{}); err != nil {
		return storeErr(err, "file "+f.ID)
	}
	s.files.invalidateStats(ctx, f.OwnerID)
	return nil
}
