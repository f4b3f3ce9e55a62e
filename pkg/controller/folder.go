package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/pkg/httputil"
	"github.com/tgdrive/clouddrive/pkg/schemas"
)

func (c *Controller) ListFolders(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Folders.List(r.Context(), auth.GetUser(r.Context()), queryString(r, "parent_id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var in schemas.CreateFolder
	if err := httputil.Bind(r, &in); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	res, err := c.svc.Folders.Create(r.Context(), auth.GetUser(r.Context()), &in)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, res)
}

// FolderContents lists the child folders and files; "root" is accepted.
func (c *Controller) FolderContents(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Folders.ListChildren(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) FolderPath(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Folders.Path(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	var in schemas.UpdateFolder
	if err := httputil.Bind(r, &in); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	res, err := c.svc.Folders.Update(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.Folders.Delete(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.NewError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
