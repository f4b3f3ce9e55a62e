package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tgdrive/clouddrive/pkg/models"
)

// Memory is a mutex-guarded store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	files   map[string]models.File
	folders map[string]models.Folder
	shares  map[string]models.ShareLink
	orphans map[string]models.OrphanBlob
}

func NewMemory() *Memory {
	return &Memory{
		files:   make(map[string]models.File),
		folders: make(map[string]models.Folder),
		shares:  make(map[string]models.ShareLink),
		orphans: make(map[string]models.OrphanBlob),
	}
}

var _ Store = (*Memory)(nil)

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFile(f models.File) *models.File {
	f.FolderID = clonePtr(f.FolderID)
	return &f
}

func cloneFolder(f models.Folder) *models.Folder {
	f.ParentID = clonePtr(f.ParentID)
	return &f
}

func cloneShare(s models.ShareLink) *models.ShareLink {
	s.Password = clonePtr(s.Password)
	s.RevokedAt = clonePtr(s.RevokedAt)
	return &s
}

func (m *Memory) CreateFile(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ID]; ok {
		return ErrConflict
	}
	for _, other := range m.files {
		if other.BlobPath == f.BlobPath {
			return ErrConflict
		}
	}
	m.files[f.ID] = *cloneFile(*f)
	return nil
}

func (m *Memory) ownedFile(id, ownerID string) (models.File, bool) {
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return models.File{}, false
	}
	return f, true
}

func (m *Memory) GetFile(_ context.Context, id, ownerID string) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.ownedFile(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFile(f), nil
}

func (m *Memory) UpdateFile(_ context.Context, id, ownerID string, patch models.FilePatch) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.ownedFile(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	if f.Status != models.StateActive {
		return nil, ErrStateMismatch
	}
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	switch {
	case patch.MoveToRoot:
		f.FolderID = nil
	case patch.FolderID != nil:
		f.FolderID = clonePtr(patch.FolderID)
	}
	f.UpdatedAt = patch.UpdatedAt
	m.files[id] = f
	return cloneFile(f), nil
}

func (m *Memory) TransitionFile(_ context.Context, id, ownerID string, t Transition) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.ownedFile(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	if f.Status != t.From {
		return nil, ErrStateMismatch
	}
	f.Status = t.To
	f.UpdatedAt = t.At
	if t.ClearFolder {
		f.FolderID = nil
	}
	m.files[id] = f
	return cloneFile(f), nil
}

func (m *Memory) DeleteFile(_ context.Context, id, ownerID string, trashedBefore time.Time) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.ownedFile(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	if f.Status != models.StateTrashed {
		return nil, ErrStateMismatch
	}
	if !trashedBefore.IsZero() && !f.UpdatedAt.Before(trashedBefore) {
		return nil, ErrStateMismatch
	}
	delete(m.files, id)
	for sid, s := range m.shares {
		if s.FileID == id {
			delete(m.shares, sid)
		}
	}
	return cloneFile(f), nil
}

func (m *Memory) match(f *models.File, filter *FileFilter) bool {
	switch {
	case f.OwnerID != filter.OwnerID:
		return false
	case filter.Status != nil && f.Status != *filter.Status:
		return false
	case filter.Folder.RootOnly && f.FolderID != nil:
		return false
	case filter.Folder.FolderID != nil && (f.FolderID == nil || *f.FolderID != *filter.Folder.FolderID):
		return false
	case filter.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(filter.NameContains)):
		return false
	case filter.Category != "" && f.Category != filter.Category:
		return false
	case filter.SizeMin != nil && f.Size < *filter.SizeMin:
		return false
	case filter.SizeMax != nil && f.Size > *filter.SizeMax:
		return false
	case filter.CreatedFrom != nil && f.CreatedAt.Before(*filter.CreatedFrom):
		return false
	case filter.CreatedTo != nil && f.CreatedAt.After(*filter.CreatedTo):
		return false
	case filter.AsOf != nil && f.CreatedAt.After(*filter.AsOf):
		return false
	}
	return true
}

// compareListing orders by created_at descending, then id ascending.
func compareListing(a, b models.File) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (m *Memory) ListFiles(_ context.Context, filter FileFilter, page Page) ([]models.File, int, error) {
	m.mu.RLock()
	var matched []models.File
	for _, f := range m.files {
		if m.match(&f, &filter) {
			matched = append(matched, *cloneFile(f))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, compareListing)
	total := len(matched)
	if page.Offset >= total {
		return []models.File{}, total, nil
	}
	end := total
	if page.Limit > 0 && page.Offset+page.Limit < total {
		end = page.Offset + page.Limit
	}
	return matched[page.Offset:end], total, nil
}

func (m *Memory) ExpiredTrash(_ context.Context, before time.Time, after TrashCursor, limit int) ([]models.File, error) {
	m.mu.RLock()
	var out []models.File
	for _, f := range m.files {
		if f.Status == models.StateTrashed && f.UpdatedAt.Before(before) && after.before(f) {
			out = append(out, *cloneFile(f))
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.File) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ScanFiles(_ context.Context, afterID string, limit int) ([]models.File, error) {
	m.mu.RLock()
	var out []models.File
	for _, f := range m.files {
		if f.ID > afterID {
			out = append(out, *cloneFile(f))
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.File) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *Memory) siblingExists(ownerID string, parentID *string, name, exceptID string) bool {
	for _, f := range m.folders {
		if f.ID != exceptID && f.OwnerID == ownerID && f.Name == name && sameParent(f.ParentID, parentID) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateFolder(_ context.Context, f *models.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[f.ID]; ok {
		return ErrConflict
	}
	if m.siblingExists(f.OwnerID, f.ParentID, f.Name, "") {
		return ErrConflict
	}
	m.folders[f.ID] = *cloneFolder(*f)
	return nil
}

func (m *Memory) GetFolder(_ context.Context, id, ownerID string) (*models.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return cloneFolder(f), nil
}

func (m *Memory) ListFolders(_ context.Context, filter FolderFilter) ([]models.Folder, error) {
	m.mu.RLock()
	out := []models.Folder{}
	for _, f := range m.folders {
		switch {
		case f.OwnerID != filter.OwnerID:
			continue
		case filter.RootOnly && f.ParentID != nil:
			continue
		case filter.ParentID != nil && !sameParent(f.ParentID, filter.ParentID):
			continue
		}
		out = append(out, *cloneFolder(f))
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.Folder) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) UpdateFolder(_ context.Context, id, ownerID string, patch models.FolderPatch) (*models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	switch {
	case patch.MoveToRoot:
		f.ParentID = nil
	case patch.ParentID != nil:
		f.ParentID = clonePtr(patch.ParentID)
	}
	if m.siblingExists(f.OwnerID, f.ParentID, f.Name, f.ID) {
		return nil, ErrConflict
	}
	f.UpdatedAt = patch.UpdatedAt
	m.folders[id] = f
	return cloneFolder(f), nil
}

func (m *Memory) DeleteFolder(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return ErrNotFound
	}
	for _, c := range m.folders {
		if c.ParentID != nil && *c.ParentID == id {
			return ErrNotEmpty
		}
	}
	for _, file := range m.files {
		if file.Status == models.StateActive && file.FolderID != nil && *file.FolderID == id {
			return ErrNotEmpty
		}
	}
	delete(m.folders, id)
	return nil
}

func (m *Memory) CreateShare(_ context.Context, s *models.ShareLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[s.FileID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.shares[s.ID]; ok {
		return ErrConflict
	}
	m.shares[s.ID] = *cloneShare(*s)
	return nil
}

func (m *Memory) GetShare(_ context.Context, id string) (*models.ShareLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shares[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneShare(s), nil
}

func (m *Memory) ListShares(_ context.Context, ownerID string, fileID *string) ([]models.ShareLink, error) {
	m.mu.RLock()
	out := []models.ShareLink{}
	for _, s := range m.shares {
		if s.OwnerID != ownerID || (fileID != nil && s.FileID != *fileID) {
			continue
		}
		out = append(out, *cloneShare(s))
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.ShareLink) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) RevokeShare(_ context.Context, id, ownerID string, at time.Time) (*models.ShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if !s.Revoked {
		s.Revoked = true
		s.RevokedAt = &at
		m.shares[id] = s
	}
	return cloneShare(s), nil
}

func (m *Memory) PruneShares(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.shares {
		if s.ExpiresAt.Before(before) || (s.Revoked && s.RevokedAt != nil && s.RevokedAt.Before(before)) {
			delete(m.shares, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) AddOrphan(_ context.Context, o models.OrphanBlob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.orphans[o.Path]; ok {
		cur.Reason = o.Reason
		cur.LastError = o.LastError
		m.orphans[o.Path] = cur
		return nil
	}
	o.Attempts = 0
	m.orphans[o.Path] = o
	return nil
}

func (m *Memory) ListOrphans(_ context.Context, limit int) ([]models.OrphanBlob, error) {
	m.mu.RLock()
	out := make([]models.OrphanBlob, 0, len(m.orphans))
	for _, o := range m.orphans {
		out = append(out, o)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.OrphanBlob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteOrphan(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orphans, path)
	return nil
}

func (m *Memory) MarkOrphanFailed(_ context.Context, path, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orphans[path]
	if !ok {
		return ErrNotFound
	}
	o.Attempts++
	o.LastError = lastError
	m.orphans[path] = o
	return nil
}

func (m *Memory) Stats(_ context.Context, ownerID string) (*models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &models.Stats{}
	byCategory := map[string]*models.CategoryStats{}
	for _, f := range m.files {
		if f.OwnerID != ownerID {
			continue
		}
		if f.Status == models.StateTrashed {
			st.TrashedFiles++
			st.TrashedBytes += f.Size
			continue
		}
		c, ok := byCategory[f.Category]
		if !ok {
			c = &models.CategoryStats{Category: f.Category}
			byCategory[f.Category] = c
		}
		c.Count++
		c.Bytes += f.Size
		st.TotalFiles++
		st.TotalBytes += f.Size
	}
	for _, f := range m.folders {
		if f.OwnerID == ownerID {
			st.Folders++
		}
	}
	st.Categories = make([]models.CategoryStats, 0, len(byCategory))
	for _, c := range byCategory {
		st.Categories = append(st.Categories, *c)
	}
	slices.SortFunc(st.Categories, func(a, b models.CategoryStats) int { return cmp.Compare(a.Category, b.Category) })
	return st, nil
}
