package services

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/suite"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/cache"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/utils"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
)

const owner = "owner-1"

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testConfig(t *testing.T) *config.ServerCmdConfig {
	cnf := &config.ServerCmdConfig{}
	cnf.Server.PublicURL = "https://drive.example.com/"
	cnf.Auth.Secret = "test-secret"
	cnf.Storage.AccessTTL = 5 * time.Minute
	cnf.Storage.MaxUploadSize = 10 << 20
	cnf.Storage.Local.Root = filepath.Join(t.TempDir(), "blobs")
	cnf.Trash.Retention = 30 * 24 * time.Hour
	cnf.Trash.BatchSize = 2
	cnf.Trash.Concurrency = 2
	cnf.Share.DefaultTTL = 24 * time.Hour
	cnf.Share.MaxTTL = 30 * 24 * time.Hour
	cnf.Share.CacheTTL = 3 * time.Second
	cnf.Share.Retention = 7 * 24 * time.Hour
	return cnf
}

// hookedBlob counts deletes and runs onPut before each upload.
type hookedBlob struct {
	blob.Store
	onPut   func()
	deletes atomic.Int32
}

func (h *hookedBlob) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if h.onPut != nil {
		h.onPut()
	}
	return h.Store.Put(ctx, path, r, size, contentType)
}

func (h *hookedBlob) Delete(ctx context.Context, path string) error {
	h.deletes.Add(1)
	return h.Store.Delete(ctx, path)
}

// brokenDeletes fails DeleteFile for the listed ids.
type brokenDeletes struct {
	*store.Memory
	ids map[string]bool
}

func (b *brokenDeletes) DeleteFile(ctx context.Context, id, ownerID string, trashedBefore time.Time) (*models.File, error) {
	if b.ids[id] {
		return nil, errors.New("disk full")
	}
	return b.Memory.DeleteFile(ctx, id, ownerID, trashedBefore)
}

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	clock *fakeClock
	cnf   *config.ServerCmdConfig
	store *store.Memory
	blob  blob.Store
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s.store = store.NewMemory()
	s.cnf = testConfig(s.T())
	local, err := blob.NewLocal(s.cnf.Storage.Local.Root)
	s.Require().NoError(err)
	s.blob = local
	s.rebuild(s.store, local)
}

func (s *ServiceSuite) rebuild(st store.Store, b blob.Store) {
	s.svc = New(Options{
		Store:  st,
		Blob:   b,
		Cache:  cache.NewMemoryCache(1 << 20),
		Config: s.cnf,
		Clock:  s.clock.Now,
		Logger: zap.NewNop(),
	})
}

func (s *ServiceSuite) upload(name string, content []byte, folderID *string) *schemas.FileOut {
	s.clock.Advance(time.Second)
	f, err := s.svc.Files.Upload(s.ctx, owner, &UploadInput{
		Name:     name,
		FolderID: folderID,
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	})
	s.Require().NoError(err)
	return f
}

func (s *ServiceSuite) folder(name string, parentID *string) *schemas.FolderOut {
	f, err := s.svc.Folders.Create(s.ctx, owner, &schemas.CreateFolder{Name: name, ParentID: parentID})
	s.Require().NoError(err)
	return f
}

func (s *ServiceSuite) list(folderID string, page, limit int, includeDeleted bool) *schemas.FileList {
	res, err := s.svc.Listing.List(s.ctx, owner, ListParams{
		FolderID:       &folderID,
		Page:           page,
		Limit:          limit,
		IncludeDeleted: includeDeleted,
	})
	s.Require().NoError(err)
	return res
}

func strayBlob(path string) models.OrphanBlob {
	return models.OrphanBlob{Path: path, Reason: models.OrphanCheck, CreatedAt: time.Now().UTC()}
}

func ids(files []schemas.FileOut) []string {
	return utils.Map(files, func(f schemas.FileOut) string { return f.ID })
}

func (s *ServiceSuite) assertKind(kind string, err error) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(kind, Kind(err), err.Error())
}

func (s *ServiceSuite) TestUploadDetectsType() {
	f := s.upload("report.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), nil)
	s.Equal("application/pdf", f.MimeType)
	s.Equal("pdf", f.Category)
	s.Nil(f.FolderID)
	s.NotEmpty(f.Hash)

	png := s.upload("pic.bin", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), nil)
	s.Equal("image/png", png.MimeType)
	s.Equal("image", png.Category)
}

func (s *ServiceSuite) TestUploadRejects() {
	_, err := s.svc.Files.Upload(s.ctx, owner, &UploadInput{Name: "  ", Size: 1, Content: bytes.NewReader([]byte("x"))})
	s.assertKind("InvalidInput", err)

	_, err = s.svc.Files.Upload(s.ctx, owner, &UploadInput{Name: "a/b", Size: 1, Content: bytes.NewReader([]byte("x"))})
	s.assertKind("InvalidInput", err)

	_, err = s.svc.Files.Upload(s.ctx, owner, &UploadInput{Name: "a.txt", Size: 5, Content: bytes.NewReader([]byte("x"))})
	s.assertKind("InvalidInput", err)

	missing := "8b1c3c4e-8a55-4bb0-9d6e-0a5f5b9c8f11"
	_, err = s.svc.Files.Upload(s.ctx, owner, &UploadInput{Name: "a.txt", FolderID: &missing, Size: 1, Content: bytes.NewReader([]byte("x"))})
	s.assertKind("InvalidParent", err)

	big := bytes.Repeat([]byte("x"), 11<<20)
	_, err = s.svc.Files.Upload(s.ctx, owner, &UploadInput{Name: "big.txt", Size: -1, Content: bytes.NewReader(big)})
	s.assertKind("InvalidInput", err)
}

func (s *ServiceSuite) TestReportScenario() {
	content := bytes.Repeat([]byte("r"), 2400000)
	f := s.upload("report.pdf", content, utils.Ptr(RootID))

	res := s.list(RootID, 1, 20, false)
	s.Require().Len(res.Files, 1)
	s.Equal(f.ID, res.Files[0].ID)
	s.Equal(int64(2400000), res.Files[0].Size)

	_, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.Empty(s.list(RootID, 1, 20, false).Files)
	withDeleted := s.list(RootID, 1, 20, true)
	s.Require().Len(withDeleted.Files, 1)
	s.True(withDeleted.Files[0].IsDeleted)

	s.Require().NoError(s.svc.Files.Purge(s.ctx, owner, f.ID))
	s.Empty(s.list(RootID, 1, 20, false).Files)
	s.Empty(s.list(RootID, 1, 20, true).Files)

	_, err = s.svc.Files.Restore(s.ctx, owner, f.ID)
	s.assertKind("NotFound", err)
}

func (s *ServiceSuite) TestPurgeRemovesBlob() {
	f := s.upload("a.txt", []byte("hello"), nil)
	stored, err := s.store.GetFile(s.ctx, f.ID, owner)
	s.Require().NoError(err)

	s.assertKind("InvalidState", s.svc.Files.Purge(s.ctx, owner, f.ID))

	_, err = s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Files.Purge(s.ctx, owner, f.ID))

	_, err = s.svc.Files.Get(s.ctx, owner, f.ID)
	s.assertKind("NotFound", err)
	_, err = s.blob.Stat(s.ctx, stored.BlobPath)
	s.ErrorIs(err, blob.ErrNotExist)

	s.assertKind("NotFound", s.svc.Files.Purge(s.ctx, owner, f.ID))
}

func (s *ServiceSuite) TestDeleteRestoreIdentity() {
	dir := s.folder("docs", nil)
	f := s.upload("a.txt", []byte("hello"), &dir.ID)

	trashed, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.True(trashed.IsDeleted)

	again, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.True(again.IsDeleted)

	s.clock.Advance(time.Minute)
	restored, err := s.svc.Files.Restore(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.False(restored.IsDeleted)
	s.True(restored.UpdatedAt.After(f.UpdatedAt))

	restored.UpdatedAt = f.UpdatedAt
	s.Equal(*f, *restored)
}

func (s *ServiceSuite) TestRestoreToRootWhenFolderGone() {
	dir := s.folder("tmp", nil)
	f := s.upload("a.txt", []byte("hello"), &dir.ID)
	_, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Folders.Delete(s.ctx, owner, dir.ID))

	restored, err := s.svc.Files.Restore(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.Nil(restored.FolderID)
}

func (s *ServiceSuite) TestRestoreMany() {
	a := s.upload("a.txt", []byte("a"), nil)
	b := s.upload("b.txt", []byte("b"), nil)
	_, err := s.svc.Files.SoftDelete(s.ctx, owner, a.ID)
	s.Require().NoError(err)

	res := s.svc.Files.RestoreMany(s.ctx, owner, []string{a.ID, b.ID, "missing"})
	s.Require().Len(res.Results, 3)
	s.True(res.Results[0].Restored)
	s.True(res.Results[1].Restored)
	s.False(res.Results[2].Restored)
	s.Equal("NotFound", res.Results[2].Error)
}

func (s *ServiceSuite) TestUpdate() {
	dir := s.folder("docs", nil)
	f := s.upload("a.txt", []byte("a"), nil)

	out, err := s.svc.Files.Update(s.ctx, owner, f.ID, &schemas.UpdateFile{Name: utils.Ptr("b.txt"), FolderID: &dir.ID})
	s.Require().NoError(err)
	s.Equal("b.txt", out.Name)
	s.Equal(dir.ID, *out.FolderID)

	out, err = s.svc.Files.Update(s.ctx, owner, f.ID, &schemas.UpdateFile{FolderID: utils.Ptr(RootID)})
	s.Require().NoError(err)
	s.Nil(out.FolderID)

	_, err = s.svc.Files.Update(s.ctx, owner, f.ID, &schemas.UpdateFile{FolderID: utils.Ptr("nope")})
	s.assertKind("InvalidParent", err)

	_, err = s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	_, err = s.svc.Files.Update(s.ctx, owner, f.ID, &schemas.UpdateFile{Name: utils.Ptr("c.txt")})
	s.assertKind("InvalidState", err)
}

func (s *ServiceSuite) TestOwnership() {
	f := s.upload("a.txt", []byte("a"), nil)
	_, err := s.svc.Files.Get(s.ctx, "someone-else", f.ID)
	s.assertKind("NotFound", err)
	_, err = s.svc.Files.SoftDelete(s.ctx, "someone-else", f.ID)
	s.assertKind("NotFound", err)
	_, err = s.svc.Shares.Issue(s.ctx, "someone-else", f.ID, &schemas.CreateShare{})
	s.assertKind("NotFound", err)
}

func (s *ServiceSuite) TestPageBeyondLast() {
	for _, n := range []string{"a", "b", "c"} {
		s.upload(n+".txt", []byte(n), nil)
	}
	res, err := s.svc.Listing.List(s.ctx, owner, ListParams{Page: 5, Limit: 2})
	s.Require().NoError(err)
	s.Empty(res.Files)
	s.Equal(3, res.Pagination.Total)
	s.Equal(2, res.Pagination.TotalPages)
}

func (s *ServiceSuite) TestListValidation() {
	_, err := s.svc.Listing.List(s.ctx, owner, ListParams{Page: 0, Limit: 10})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Listing.List(s.ctx, owner, ListParams{Page: 1, Limit: 101})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Listing.List(s.ctx, owner, ListParams{FolderID: utils.Ptr("nope"), Page: 1, Limit: 10})
	s.assertKind("NotFound", err)
}

func (s *ServiceSuite) TestStablePaging() {
	var uploaded []string
	for _, n := range []string{"a", "b", "c"} {
		uploaded = append(uploaded, s.upload(n+".txt", []byte(n), nil).ID)
	}
	first, err := s.svc.Listing.List(s.ctx, owner, ListParams{Page: 1, Limit: 2})
	s.Require().NoError(err)
	s.Equal([]string{uploaded[2], uploaded[1]}, ids(first.Files))

	s.upload("d.txt", []byte("d"), nil)

	second, err := s.svc.Listing.List(s.ctx, owner, ListParams{Page: 2, Limit: 2, AsOf: *first.Pagination.AsOf})
	s.Require().NoError(err)
	s.Equal([]string{uploaded[0]}, ids(second.Files))
	s.Equal(3, second.Pagination.Total)
}

func (s *ServiceSuite) TestUploadDuringPagedRead() {
	hooked := &hookedBlob{Store: s.blob}
	s.rebuild(s.store, hooked)
	var uploaded []string
	for _, n := range []string{"a", "b", "c"} {
		uploaded = append(uploaded, s.upload(n+".txt", []byte(n), nil).ID)
	}

	var first *schemas.FileList
	hooked.onPut = func() {
		s.clock.Advance(time.Second)
		var err error
		first, err = s.svc.Listing.List(s.ctx, owner, ListParams{Page: 1, Limit: 2})
		s.Require().NoError(err)
		s.clock.Advance(time.Second)
	}
	late := s.upload("d.txt", []byte("d"), nil)
	hooked.onPut = nil

	s.Require().NotNil(first)
	s.Equal([]string{uploaded[2], uploaded[1]}, ids(first.Files))
	second, err := s.svc.Listing.List(s.ctx, owner, ListParams{Page: 2, Limit: 2, AsOf: *first.Pagination.AsOf})
	s.Require().NoError(err)
	s.Equal([]string{uploaded[0]}, ids(second.Files))
	s.Equal(3, second.Pagination.Total)
	s.True(late.CreatedAt.After(*first.Pagination.AsOf))
}

func (s *ServiceSuite) TestTrashListing() {
	a := s.upload("a.txt", []byte("a"), nil)
	s.upload("b.txt", []byte("b"), nil)
	_, err := s.svc.Files.SoftDelete(s.ctx, owner, a.ID)
	s.Require().NoError(err)

	res, err := s.svc.Listing.Trash(s.ctx, owner, 1, 10, time.Time{})
	s.Require().NoError(err)
	s.Equal([]string{a.ID}, ids(res.Files))

	purged, err := s.svc.Files.EmptyTrash(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(1, purged.Purged)
}

func (s *ServiceSuite) TestEmptyTrashSpansBatches() {
	var trashed []string
	for i := range 5 {
		f := s.upload(strings.Repeat("x", i+1)+".txt", []byte("x"), nil)
		_, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
		s.Require().NoError(err)
		trashed = append(trashed, f.ID)
	}
	kept := s.upload("kept.txt", []byte("kept"), nil)

	res, err := s.svc.Files.EmptyTrash(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(5, res.Purged)
	for _, id := range trashed {
		_, err := s.svc.Files.Get(s.ctx, owner, id)
		s.assertKind("NotFound", err)
	}
	_, err = s.svc.Files.Get(s.ctx, owner, kept.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestSearchTypeExcludesTrash() {
	img := s.upload("cat.png", []byte("not really a png"), nil)
	trashed := s.upload("dog.jpg", []byte("not really a jpeg"), nil)
	s.upload("notes.txt", []byte("hello"), nil)
	_, err := s.svc.Files.SoftDelete(s.ctx, owner, trashed.ID)
	s.Require().NoError(err)

	res, err := s.svc.Search.Search(s.ctx, owner, SearchParams{Type: "image", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{img.ID}, ids(res.Files))
	for _, f := range res.Files {
		s.Equal("image", f.Category)
		s.False(f.IsDeleted)
	}
}

func (s *ServiceSuite) TestSearchFilters() {
	small := s.upload("Quarterly Report.txt", []byte("small"), nil)
	s.upload("report-big.txt", bytes.Repeat([]byte("b"), 2<<20), nil)
	s.upload("other.txt", []byte("x"), nil)

	res, err := s.svc.Search.Search(s.ctx, owner, SearchParams{Query: "REPORT", SizeMax: utils.Ptr(1.0), Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{small.ID}, ids(res.Files))

	day := s.clock.t.Format(dateLayout)
	res, err = s.svc.Search.Search(s.ctx, owner, SearchParams{DateFrom: day, DateTo: day, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Len(res.Files, 3)

	res, err = s.svc.Search.Search(s.ctx, owner, SearchParams{DateTo: "2024-04-30", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Empty(res.Files)
}

func (s *ServiceSuite) TestSearchValidation() {
	_, err := s.svc.Search.Search(s.ctx, owner, SearchParams{Page: 1, Limit: 10})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Search.Search(s.ctx, owner, SearchParams{Type: "spreadsheet", Page: 1, Limit: 10})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Search.Search(s.ctx, owner, SearchParams{SizeMin: utils.Ptr(2.0), SizeMax: utils.Ptr(1.0), Page: 1, Limit: 10})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Search.Search(s.ctx, owner, SearchParams{DateFrom: "yesterday", Page: 1, Limit: 10})
	s.assertKind("InvalidQuery", err)
}

func (s *ServiceSuite) TestFolders() {
	a := s.folder("a", nil)
	b := s.folder("b", &a.ID)
	c := s.folder("c", &b.ID)

	_, err := s.svc.Folders.Create(s.ctx, owner, &schemas.CreateFolder{Name: "b", ParentID: &a.ID})
	s.assertKind("Conflict", err)
	_, err = s.svc.Folders.Create(s.ctx, owner, &schemas.CreateFolder{Name: "x", ParentID: utils.Ptr("missing")})
	s.assertKind("InvalidParent", err)

	path, err := s.svc.Folders.Path(s.ctx, owner, c.ID)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "c"}, utils.Map(path.Path, func(f schemas.FolderOut) string { return f.Name }))

	root, err := s.svc.Folders.Path(s.ctx, owner, RootID)
	s.Require().NoError(err)
	s.Empty(root.Path)

	_, err = s.svc.Folders.Update(s.ctx, owner, a.ID, &schemas.UpdateFolder{ParentID: &c.ID})
	s.assertKind("InvalidParent", err)
	_, err = s.svc.Folders.Update(s.ctx, owner, a.ID, &schemas.UpdateFolder{ParentID: &a.ID})
	s.assertKind("InvalidParent", err)

	moved, err := s.svc.Folders.Update(s.ctx, owner, c.ID, &schemas.UpdateFolder{ParentID: utils.Ptr(RootID)})
	s.Require().NoError(err)
	s.Nil(moved.ParentID)

	s.upload("in-b.txt", []byte("x"), &b.ID)
	contents, err := s.svc.Folders.ListChildren(s.ctx, owner, b.ID)
	s.Require().NoError(err)
	s.Equal(b.ID, contents.Folder.ID)
	s.Len(contents.Files, 1)
	s.Empty(contents.Folders)

	s.assertKind("InvalidState", s.svc.Folders.Delete(s.ctx, owner, a.ID))
	s.assertKind("InvalidState", s.svc.Folders.Delete(s.ctx, owner, b.ID))
	s.Require().NoError(s.svc.Folders.Delete(s.ctx, owner, c.ID))
	s.assertKind("NotFound", s.svc.Folders.Delete(s.ctx, owner, c.ID))

	top, err := s.svc.Folders.List(s.ctx, owner, utils.Ptr(RootID))
	s.Require().NoError(err)
	s.Len(top.Folders, 1)
}

func (s *ServiceSuite) TestAccessFallback() {
	f := s.upload("a.txt", []byte("hello"), nil)
	a, err := s.svc.Files.DownloadURL(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(a.URL, "https://drive.example.com/api/blobs/"), a.URL)

	token := strings.TrimPrefix(a.URL, "https://drive.example.com/api/blobs/")
	claims, rc, err := s.svc.Access.Open(s.ctx, token)
	s.Require().NoError(err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal("hello", string(body))
	s.Equal("a.txt", claims.Name)

	_, _, err = s.svc.Access.Open(s.ctx, "garbage")
	s.assertKind("NotFound", err)

	preview, err := s.svc.Files.Preview(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	s.Equal("text", preview.FileType)

	_, err = s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	_, err = s.svc.Files.Preview(s.ctx, owner, f.ID)
	s.assertKind("InvalidState", err)
}

func (s *ServiceSuite) TestShareExpiry() {
	f := s.upload("a.txt", []byte("hello"), nil)
	out, err := s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{ExpiresIn: utils.Ptr(int64(60))})
	s.Require().NoError(err)
	s.Equal("https://drive.example.com/api/s/"+out.Token, out.SignedURL)

	shared, err := s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.Require().NoError(err)
	s.Equal("a.txt", shared.Name)

	s.clock.Advance(61 * time.Second)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.assertKind("Expired", err)
}

func (s *ServiceSuite) TestShareRevoke() {
	f := s.upload("a.txt", []byte("hello"), nil)
	out, err := s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{})
	s.Require().NoError(err)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.Require().NoError(err)

	_, err = s.svc.Shares.Revoke(s.ctx, "someone-else", out.ID)
	s.assertKind("NotFound", err)

	link, err := s.svc.Shares.Revoke(s.ctx, owner, out.ID)
	s.Require().NoError(err)
	s.Equal("revoked", link.Status)
	_, err = s.svc.Shares.Revoke(s.ctx, owner, out.ID)
	s.Require().NoError(err)

	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.assertKind("Revoked", err)

	s.clock.Advance(48 * time.Hour)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.assertKind("Revoked", err)
}

func (s *ServiceSuite) TestShareTokens() {
	f := s.upload("a.txt", []byte("hello"), nil)
	out, err := s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{})
	s.Require().NoError(err)

	for _, bad := range []string{"", "nodot", out.ID + ".AAAA", "not-a-uuid.AAAA", out.Token + "x"} {
		_, err := s.svc.Shares.Resolve(s.ctx, bad, nil)
		s.assertKind("NotFound", err)
	}

	_, err = s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{ExpiresIn: utils.Ptr(int64(0))})
	s.assertKind("InvalidQuery", err)
	_, err = s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{ExpiresIn: utils.Ptr(int64(31 * 24 * 3600))})
	s.assertKind("InvalidQuery", err)

	_, err = s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
	s.Require().NoError(err)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.assertKind("NotFound", err)
	_, err = s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{})
	s.assertKind("NotFound", err)
}

func (s *ServiceSuite) TestSharePassword() {
	f := s.upload("a.txt", []byte("hello"), nil)
	out, err := s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{Password: utils.Ptr("hunter2")})
	s.Require().NoError(err)

	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, nil)
	s.assertKind("InvalidPassword", err)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, utils.Ptr("wrong"))
	s.assertKind("InvalidPassword", err)
	_, err = s.svc.Shares.Resolve(s.ctx, out.Token, utils.Ptr("hunter2"))
	s.Require().NoError(err)

	list, err := s.svc.Shares.List(s.ctx, owner, &f.ID)
	s.Require().NoError(err)
	s.Require().Len(list.Shares, 1)
	s.True(list.Shares[0].Protected)
}

func (s *ServiceSuite) TestSharePrune() {
	f := s.upload("a.txt", []byte("hello"), nil)
	_, err := s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{ExpiresIn: utils.Ptr(int64(60))})
	s.Require().NoError(err)
	_, err = s.svc.Shares.Issue(s.ctx, owner, f.ID, &schemas.CreateShare{})
	s.Require().NoError(err)

	s.clock.Advance(8*24*time.Hour + time.Minute)
	n, err := s.svc.Shares.Prune(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *ServiceSuite) TestExpirySweep() {
	old := s.upload("old.txt", []byte("old"), nil)
	recent := s.upload("recent.txt", []byte("recent"), nil)
	s.upload("active.txt", []byte("active"), nil)

	_, err := s.svc.Files.SoftDelete(s.ctx, owner, old.ID)
	s.Require().NoError(err)
	s.clock.Advance(20 * 24 * time.Hour)
	_, err = s.svc.Files.SoftDelete(s.ctx, owner, recent.ID)
	s.Require().NoError(err)
	s.clock.Advance(11 * 24 * time.Hour)

	res, err := s.svc.Sweeper.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Purged)
	s.Equal(0, res.Failed)

	_, err = s.svc.Files.Get(s.ctx, owner, old.ID)
	s.assertKind("NotFound", err)
	got, err := s.svc.Files.Get(s.ctx, owner, recent.ID)
	s.Require().NoError(err)
	s.True(got.IsDeleted)
}

func (s *ServiceSuite) TestExpirySweepSkipsFailingRows() {
	var trashed []string
	for _, n := range []string{"a", "b", "c"} {
		f := s.upload(n+".txt", []byte(n), nil)
		_, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
		s.Require().NoError(err)
		trashed = append(trashed, f.ID)
	}
	broken := &brokenDeletes{Memory: s.store, ids: map[string]bool{trashed[0]: true, trashed[1]: true}}
	s.rebuild(broken, s.blob)
	s.clock.Advance(31 * 24 * time.Hour)

	res, err := s.svc.Sweeper.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Scanned)
	s.Equal(1, res.Purged)
	s.Equal(2, res.Failed)

	_, err = s.svc.Files.Get(s.ctx, owner, trashed[2])
	s.assertKind("NotFound", err)
	got, err := s.svc.Files.Get(s.ctx, owner, trashed[0])
	s.Require().NoError(err)
	s.True(got.IsDeleted)
}

func (s *ServiceSuite) TestConcurrentRestorePurgeSweep() {
	hooked := &hookedBlob{Store: s.blob}
	s.rebuild(s.store, hooked)

	for range 25 {
		f := s.upload("race.txt", []byte("race"), nil)
		_, err := s.svc.Files.SoftDelete(s.ctx, owner, f.ID)
		s.Require().NoError(err)
		stored, err := s.store.GetFile(s.ctx, f.ID, owner)
		s.Require().NoError(err)
		s.clock.Advance(31 * 24 * time.Hour)
		hooked.deletes.Store(0)

		var (
			wg                   sync.WaitGroup
			restoreErr, purgeErr error
			sweep                SweepResult
			sweepErr             error
		)
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, restoreErr = s.svc.Files.Restore(s.ctx, owner, f.ID)
		}()
		go func() {
			defer wg.Done()
			purgeErr = s.svc.Files.Purge(s.ctx, owner, f.ID)
		}()
		go func() {
			defer wg.Done()
			sweep, sweepErr = s.svc.Sweeper.ExpirySweep(s.ctx)
		}()
		wg.Wait()

		s.Require().NoError(sweepErr)
		if restoreErr != nil {
			s.Equal("NotFound", Kind(restoreErr), restoreErr.Error())
		}
		if purgeErr != nil {
			s.Contains([]string{"NotFound", "InvalidState"}, Kind(purgeErr), purgeErr.Error())
		}

		purges := sweep.Purged
		if purgeErr == nil {
			purges++
		}
		s.LessOrEqual(purges, 1)
		s.Equal(int32(purges), hooked.deletes.Load())

		_, getErr := s.store.GetFile(s.ctx, f.ID, owner)
		_, statErr := s.blob.Stat(s.ctx, stored.BlobPath)
		if restoreErr == nil {
			s.Equal(0, purges)
			s.NoError(getErr)
			s.NoError(statErr)
		} else {
			s.Equal(1, purges)
			s.ErrorIs(getErr, store.ErrNotFound)
			s.True(errors.Is(statErr, blob.ErrNotExist))
		}
	}
}

func (s *ServiceSuite) TestReclaimOrphans() {
	content := []byte("stray")
	s.Require().NoError(s.blob.Put(s.ctx, "owner-1/stray", bytes.NewReader(content), int64(len(content)), "text/plain"))
	s.Require().NoError(s.store.AddOrphan(s.ctx, strayBlob("owner-1/stray")))
	s.Require().NoError(s.store.AddOrphan(s.ctx, strayBlob("owner-1/already-gone")))

	res, err := s.svc.Sweeper.ReclaimOrphans(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Deleted)

	_, err = s.blob.Stat(s.ctx, "owner-1/stray")
	s.True(errors.Is(err, blob.ErrNotExist))
	left, err := s.store.ListOrphans(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(left)
}

func (s *ServiceSuite) TestVerifyBlobs() {
	ok := s.upload("ok.txt", []byte("fine"), nil)
	lost := s.upload("lost.txt", []byte("gone"), nil)
	s.upload("third.txt", []byte("three"), nil)
	stored, err := s.store.GetFile(s.ctx, lost.ID, owner)
	s.Require().NoError(err)
	s.Require().NoError(s.blob.Delete(s.ctx, stored.BlobPath))

	report, err := s.svc.Sweeper.VerifyBlobs(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, report.Scanned)
	s.False(report.OK())
	s.Require().Len(report.Missing, 1)
	s.Equal(lost.ID, report.Missing[0].ID)
	s.Empty(report.Mismatched)
	s.NotEqual(ok.ID, report.Missing[0].ID)

	s.Require().NoError(s.svc.Sweeper.DropMissing(s.ctx, report.Missing[0]))
	_, err = s.svc.Files.Get(s.ctx, owner, lost.ID)
	s.assertKind("NotFound", err)

	report, err = s.svc.Sweeper.VerifyBlobs(s.ctx)
	s.Require().NoError(err)
	s.True(report.OK())
	s.Equal(2, report.Scanned)
}

func (s *ServiceSuite) TestStats() {
	s.upload("a.png", []byte("img"), nil)
	s.upload("b.txt", []byte("text!"), nil)
	st, err := s.svc.Files.Stats(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(int64(2), st.TotalFiles)
	s.Equal(int64(8), st.TotalBytes)

	s.upload("c.txt", []byte("c"), nil)
	st, err = s.svc.Files.Stats(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(int64(3), st.TotalFiles)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
