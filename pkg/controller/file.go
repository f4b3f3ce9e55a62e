package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/pkg/httputil"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/services"
)

func (c *Controller) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paging(r)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	includeDeleted, err := queryBool(r, "include_deleted")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	asOf, err := queryTime(r, "as_of")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	res, err := c.svc.Listing.List(r.Context(), auth.GetUser(r.Context()), services.ListParams{
		FolderID:       queryString(r, "folder_id"),
		Page:           page,
		Limit:          limit,
		IncludeDeleted: includeDeleted,
		AsOf:           asOf,
	})
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) SearchFiles(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paging(r)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	sizeMin, err := queryFloat(r, "sizeMin")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	sizeMax, err := queryFloat(r, "sizeMax")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	asOf, err := queryTime(r, "as_of")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := c.svc.Search.Search(r.Context(), auth.GetUser(r.Context()), services.SearchParams{
		Query:    q.Get("query"),
		Type:     q.Get("type"),
		SizeMin:  sizeMin,
		SizeMax:  sizeMax,
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
		FolderID: queryString(r, "folder_id"),
		Page:     page,
		Limit:    limit,
		AsOf:     asOf,
	})
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) ListTrash(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paging(r)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	asOf, err := queryTime(r, "as_of")
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	res, err := c.svc.Listing.Trash(r.Context(), auth.GetUser(r.Context()), page, limit, asOf)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.EmptyTrash(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) RestoreFiles(w http.ResponseWriter, r *http.Request) {
	var in schemas.RestoreFiles
	if err := httputil.Bind(r, &in); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c.svc.Files.RestoreMany(r.Context(), auth.GetUser(r.Context()), in.IDs))
}

func (c *Controller) Stats(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.Stats(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) GetFile(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.Get(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var in schemas.UpdateFile
	if err := httputil.Bind(r, &in); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	res, err := c.svc.Files.Update(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) DeleteFile(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.SoftDelete(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) RestoreFile(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.Restore(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) PurgeFile(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.Files.Purge(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) PreviewFile(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Files.Preview(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) DownloadFile(w http.ResponseWriter, r *http.Request) {
	a, err := c.svc.Files.DownloadURL(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, a.URL, http.StatusFound)
}
