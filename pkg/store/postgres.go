package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/tgdrive/clouddrive/internal/database"
	"github.com/tgdrive/clouddrive/pkg/models"
)

const (
	fileColumns   = "id, owner_id, name, size, mime_type, category, blob_path, hash, folder_id, status, created_at, updated_at"
	folderColumns = "id, owner_id, name, parent_id, created_at, updated_at"
	shareColumns  = "id, file_id, owner_id, password, issued_at, expires_at, revoked, revoked_at"
)

// Postgres is the database/sql store over the pgx driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	var (
		f      models.File
		folder sql.NullString
		status string
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Size, &f.MimeType, &f.Category,
		&f.BlobPath, &f.Hash, &folder, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if folder.Valid {
		f.FolderID = &folder.String
	}
	f.Status = models.FileState(status)
	return &f, nil
}

func scanFolder(row scanner) (*models.Folder, error) {
	var (
		f      models.Folder
		parent sql.NullString
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &parent, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		f.ParentID = &parent.String
	}
	return &f, nil
}

func scanShare(row scanner) (*models.ShareLink, error) {
	var (
		s         models.ShareLink
		password  sql.NullString
		revokedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.FileID, &s.OwnerID, &password, &s.IssuedAt, &s.ExpiresAt,
		&s.Revoked, &revokedAt); err != nil {
		return nil, err
	}
	if password.Valid {
		s.Password = &password.String
	}
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	return &s, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func writeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsKeyConflictErr(err):
		return errors.Wrap(ErrConflict, err.Error())
	case database.IsForeignKeyErr(err):
		return errors.Wrap(ErrNotFound, err.Error())
	}
	return err
}

func (p *Postgres) CreateFile(ctx context.Context, f *models.File) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO clouddrive.files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		f.ID, f.OwnerID, f.Name, f.Size, f.MimeType, f.Category, f.BlobPath, f.Hash,
		f.FolderID, string(f.Status), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return errors.Wrap(writeErr(err), "insert file")
	}
	return nil
}

func (p *Postgres) getFile(ctx context.Context, db database.DBTX, id, ownerID string) (*models.File, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	f, err := scanFile(db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM clouddrive.files WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if database.IsRecordNotFoundErr(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (p *Postgres) GetFile(ctx context.Context, id, ownerID string) (*models.File, error) {
	return p.getFile(ctx, p.db, id, ownerID)
}

// missOrMismatch explains a conditional write that touched no row.
func (p *Postgres) missOrMismatch(ctx context.Context, id, ownerID string) error {
	if _, err := p.getFile(ctx, p.db, id, ownerID); err != nil {
		return err
	}
	return ErrStateMismatch
}

func (p *Postgres) UpdateFile(ctx context.Context, id, ownerID string, patch models.FilePatch) (*models.File, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	q := &query{}
	sets := []string{"updated_at = " + q.arg(patch.UpdatedAt)}
	if patch.Name != nil {
		sets = append(sets, "name = "+q.arg(*patch.Name))
	}
	switch {
	case patch.MoveToRoot:
		sets = append(sets, "folder_id = NULL")
	case patch.FolderID != nil:
		sets = append(sets, "folder_id = "+q.arg(*patch.FolderID))
	}
	q.where("id = ?", id)
	q.where("owner_id = ?", ownerID)
	q.where("status = ?", string(models.StateActive))

	f, err := scanFile(p.db.QueryRowContext(ctx, `UPDATE clouddrive.files SET `+strings.Join(sets, ", ")+
		q.clause()+` RETURNING `+fileColumns, q.args...))
	if database.IsRecordNotFoundErr(err) {
		return nil, p.missOrMismatch(ctx, id, ownerID)
	}
	if err != nil {
		return nil, errors.Wrap(writeErr(err), "update file")
	}
	return f, nil
}

func (p *Postgres) TransitionFile(ctx context.Context, id, ownerID string, t Transition) (*models.File, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	q := &query{}
	sets := []string{"status = " + q.arg(string(t.To)), "updated_at = " + q.arg(t.At)}
	if t.ClearFolder {
		sets = append(sets, "folder_id = NULL")
	}
	q.where("id = ?", id)
	q.where("owner_id = ?", ownerID)
	q.where("status = ?", string(t.From))

	f, err := scanFile(p.db.QueryRowContext(ctx, `UPDATE clouddrive.files SET `+strings.Join(sets, ", ")+
		q.clause()+` RETURNING `+fileColumns, q.args...))
	if database.IsRecordNotFoundErr(err) {
		return nil, p.missOrMismatch(ctx, id, ownerID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "transition file")
	}
	return f, nil
}

func (p *Postgres) DeleteFile(ctx context.Context, id, ownerID string, trashedBefore time.Time) (*models.File, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	q := &query{}
	q.where("id = ?", id)
	q.where("owner_id = ?", ownerID)
	q.where("status = ?", string(models.StateTrashed))
	if !trashedBefore.IsZero() {
		q.where("updated_at < ?", trashedBefore)
	}
	f, err := scanFile(p.db.QueryRowContext(ctx,
		`DELETE FROM clouddrive.files`+q.clause()+` RETURNING `+fileColumns, q.args...))
	if database.IsRecordNotFoundErr(err) {
		return nil, p.missOrMismatch(ctx, id, ownerID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "delete file")
	}
	return f, nil
}

func fileWhere(filter *FileFilter) *query {
	q := &query{}
	q.where("owner_id = ?", filter.OwnerID)
	if filter.Status != nil {
		q.where("status = ?", string(*filter.Status))
	}
	switch {
	case filter.Folder.RootOnly:
		q.where("folder_id IS NULL")
	case filter.Folder.FolderID != nil:
		q.where("folder_id = ?", *filter.Folder.FolderID)
	}
	if filter.NameContains != "" {
		q.where(`name ILIKE ? ESCAPE '\'`, containsPattern(filter.NameContains))
	}
	if filter.Category != "" {
		q.where("category = ?", filter.Category)
	}
	if filter.SizeMin != nil {
		q.where("size >= ?", *filter.SizeMin)
	}
	if filter.SizeMax != nil {
		q.where("size <= ?", *filter.SizeMax)
	}
	if filter.CreatedFrom != nil {
		q.where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q.where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.AsOf != nil {
		q.where("created_at <= ?", *filter.AsOf)
	}
	return q
}

// ListFiles counts and pages in one repeatable-read snapshot so the total
// matches the rows returned.
func (p *Postgres) ListFiles(ctx context.Context, filter FileFilter, page Page) ([]models.File, int, error) {
	if filter.Folder.FolderID != nil && !validID(*filter.Folder.FolderID) {
		return []models.File{}, 0, nil
	}
	q := fileWhere(&filter)
	var (
		files []models.File
		total int
	)
	err := database.WithTx(ctx, p.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		func(ctx context.Context, tx database.DBTX) error {
			if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM clouddrive.files`+q.clause(), q.args...).Scan(&total); err != nil {
				return errors.Wrap(err, "count files")
			}
			if page.Offset >= total {
				files = []models.File{}
				return nil
			}
			args := append([]any{}, q.args...)
			stmt := `SELECT ` + fileColumns + ` FROM clouddrive.files` + q.clause() + ` ORDER BY created_at DESC, id ASC`
			// a zero limit reads every matching row
			switch {
			case page.Limit > 0:
				args = append(args, page.Limit, page.Offset)
				stmt += ` LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))
			case page.Offset > 0:
				args = append(args, page.Offset)
				stmt += ` OFFSET $` + itoa(len(args))
			}
			rows, err := tx.QueryContext(ctx, stmt, args...)
			if err != nil {
				return errors.Wrap(err, "list files")
			}
			files, err = collect(rows, scanFile)
			return err
		})
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (p *Postgres) ExpiredTrash(ctx context.Context, before time.Time, after TrashCursor, limit int) ([]models.File, error) {
	afterID := after.ID
	if afterID == "" {
		afterID = FirstID
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM clouddrive.files
		WHERE status = 'trashed' AND updated_at < $1 AND (updated_at, id) > ($2, $3)
		ORDER BY updated_at, id LIMIT $4`, before, after.UpdatedAt, afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select expired trash")
	}
	return collect(rows, scanFile)
}

func (p *Postgres) ScanFiles(ctx context.Context, afterID string, limit int) ([]models.File, error) {
	if afterID == "" {
		afterID = FirstID
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM clouddrive.files
		WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "scan files")
	}
	return collect(rows, scanFile)
}

func (p *Postgres) CreateFolder(ctx context.Context, f *models.Folder) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO clouddrive.folders (`+folderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.OwnerID, f.Name, f.ParentID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return errors.Wrap(writeErr(err), "insert folder")
	}
	return nil
}

func (p *Postgres) GetFolder(ctx context.Context, id, ownerID string) (*models.Folder, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	f, err := scanFolder(p.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM clouddrive.folders WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if database.IsRecordNotFoundErr(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (p *Postgres) ListFolders(ctx context.Context, filter FolderFilter) ([]models.Folder, error) {
	q := &query{}
	q.where("owner_id = ?", filter.OwnerID)
	switch {
	case filter.RootOnly:
		q.where("parent_id IS NULL")
	case filter.ParentID != nil:
		if !validID(*filter.ParentID) {
			return []models.Folder{}, nil
		}
		q.where("parent_id = ?", *filter.ParentID)
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+folderColumns+` FROM clouddrive.folders`+
		q.clause()+` ORDER BY name, id`, q.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list folders")
	}
	return collect(rows, scanFolder)
}

func (p *Postgres) UpdateFolder(ctx context.Context, id, ownerID string, patch models.FolderPatch) (*models.Folder, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	q := &query{}
	sets := []string{"updated_at = " + q.arg(patch.UpdatedAt)}
	if patch.Name != nil {
		sets = append(sets, "name = "+q.arg(*patch.Name))
	}
	switch {
	case patch.MoveToRoot:
		sets = append(sets, "parent_id = NULL")
	case patch.ParentID != nil:
		sets = append(sets, "parent_id = "+q.arg(*patch.ParentID))
	}
	q.where("id = ?", id)
	q.where("owner_id = ?", ownerID)

	f, err := scanFolder(p.db.QueryRowContext(ctx, `UPDATE clouddrive.folders SET `+strings.Join(sets, ", ")+
		q.clause()+` RETURNING `+folderColumns, q.args...))
	if database.IsRecordNotFoundErr(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(writeErr(err), "update folder")
	}
	return f, nil
}

func (p *Postgres) DeleteFolder(ctx context.Context, id, ownerID string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM clouddrive.folders f
		WHERE f.id = $1 AND f.owner_id = $2
		AND NOT EXISTS (SELECT 1 FROM clouddrive.folders c WHERE c.parent_id = f.id)
		AND NOT EXISTS (SELECT 1 FROM clouddrive.files x WHERE x.folder_id = f.id AND x.status = 'active')`,
		id, ownerID)
	if err != nil {
		if database.IsForeignKeyErr(err) {
			return ErrNotEmpty
		}
		return errors.Wrap(err, "delete folder")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := p.GetFolder(ctx, id, ownerID); err != nil {
		return err
	}
	return ErrNotEmpty
}

func (p *Postgres) CreateShare(ctx context.Context, s *models.ShareLink) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO clouddrive.share_links (`+shareColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.FileID, s.OwnerID, s.Password, s.IssuedAt, s.ExpiresAt, s.Revoked, s.RevokedAt)
	if err != nil {
		return errors.Wrap(writeErr(err), "insert share")
	}
	return nil
}

func (p *Postgres) GetShare(ctx context.Context, id string) (*models.ShareLink, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s, err := scanShare(p.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM clouddrive.share_links WHERE id = $1`, id))
	if database.IsRecordNotFoundErr(err) {
		return nil, ErrNotFound
	}
	return s, err
}

func (p *Postgres) ListShares(ctx context.Context, ownerID string, fileID *string) ([]models.ShareLink, error) {
	q := &query{}
	q.where("owner_id = ?", ownerID)
	if fileID != nil {
		if !validID(*fileID) {
			return []models.ShareLink{}, nil
		}
		q.where("file_id = ?", *fileID)
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+shareColumns+` FROM clouddrive.share_links`+
		q.clause()+` ORDER BY issued_at DESC, id`, q.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list shares")
	}
	return collect(rows, scanShare)
}

func (p *Postgres) RevokeShare(ctx context.Context, id, ownerID string, at time.Time) (*models.ShareLink, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s, err := scanShare(p.db.QueryRowContext(ctx, `UPDATE clouddrive.share_links
		SET revoked = true, revoked_at = coalesce(revoked_at, $3)
		WHERE id = $1 AND owner_id = $2 RETURNING `+shareColumns, id, ownerID, at))
	if database.IsRecordNotFoundErr(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "revoke share")
	}
	return s, nil
}

func (p *Postgres) PruneShares(ctx context.Context, before time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM clouddrive.share_links
		WHERE expires_at < $1 OR (revoked AND revoked_at < $1)`, before)
	if err != nil {
		return 0, errors.Wrap(err, "prune shares")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *Postgres) AddOrphan(ctx context.Context, o models.OrphanBlob) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO clouddrive.orphan_blobs (path, reason, attempts, last_error, created_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (path) DO UPDATE SET reason = EXCLUDED.reason, last_error = EXCLUDED.last_error`,
		o.Path, o.Reason, o.LastError, o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert orphan")
	}
	return nil
}

func (p *Postgres) ListOrphans(ctx context.Context, limit int) ([]models.OrphanBlob, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT path, reason, attempts, last_error, created_at
		FROM clouddrive.orphan_blobs ORDER BY created_at, path LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orphans")
	}
	return collect(rows, func(row scanner) (*models.OrphanBlob, error) {
		var o models.OrphanBlob
		err := row.Scan(&o.Path, &o.Reason, &o.Attempts, &o.LastError, &o.CreatedAt)
		return &o, err
	})
}

func (p *Postgres) DeleteOrphan(ctx context.Context, path string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM clouddrive.orphan_blobs WHERE path = $1`, path)
	return err
}

func (p *Postgres) MarkOrphanFailed(ctx context.Context, path, lastError string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE clouddrive.orphan_blobs
		SET attempts = attempts + 1, last_error = $2 WHERE path = $1`, path, lastError)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	st := &models.Stats{}
	rows, err := p.db.QueryContext(ctx, `SELECT category, count(*), coalesce(sum(size), 0)
		FROM clouddrive.files WHERE owner_id = $1 AND status = 'active'
		GROUP BY category ORDER BY category`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "category stats")
	}
	st.Categories, err = collect(rows, func(row scanner) (*models.CategoryStats, error) {
		var c models.CategoryStats
		err := row.Scan(&c.Category, &c.Count, &c.Bytes)
		return &c, err
	})
	if err != nil {
		return nil, err
	}
	for _, c := range st.Categories {
		st.TotalFiles += c.Count
		st.TotalBytes += c.Bytes
	}
	if err := p.db.QueryRowContext(ctx, `SELECT count(*), coalesce(sum(size), 0)
		FROM clouddrive.files WHERE owner_id = $1 AND status = 'trashed'`, ownerID).
		Scan(&st.TrashedFiles, &st.TrashedBytes); err != nil {
		return nil, errors.Wrap(err, "trash stats")
	}
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM clouddrive.folders WHERE owner_id = $1`, ownerID).
		Scan(&st.Folders); err != nil {
		return nil, errors.Wrap(err, "folder stats")
	}
	return st, nil
}
