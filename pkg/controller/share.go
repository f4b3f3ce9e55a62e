package controller

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/pkg/httputil"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/services"
	"go.uber.org/zap"
)

func (c *Controller) ShareFile(w http.ResponseWriter, r *http.Request) {
	var in schemas.CreateShare
	if r.ContentLength != 0 {
		if err := httputil.Bind(r, &in); err != nil {
			httputil.NewError(w, r, err)
			return
		}
	}
	res, err := c.svc.Shares.Issue(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, res)
}

func (c *Controller) ListShares(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Shares.List(r.Context(), auth.GetUser(r.Context()), queryString(r, "file_id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (c *Controller) RevokeShare(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Shares.Revoke(r.Context(), auth.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

// sharePassword reads the password of a protected link from HTTP Basic auth.
func sharePassword(r *http.Request) *string {
	if _, password, ok := r.BasicAuth(); ok {
		return &password
	}
	return nil
}

func (c *Controller) resolve(w http.ResponseWriter, r *http.Request) (*schemas.SharedFile, bool) {
	res, err := c.svc.Shares.Resolve(r.Context(), chi.URLParam(r, "token"), sharePassword(r))
	if err != nil {
		if services.Kind(err) == "InvalidPassword" {
			w.Header().Set("WWW-Authenticate", `Basic realm="shared file"`)
		}
		httputil.NewError(w, r, err)
		return nil, false
	}
	w.Header().Set("Cache-Control", "no-store")
	return res, true
}

func (c *Controller) ResolveShare(w http.ResponseWriter, r *http.Request) {
	if res, ok := c.resolve(w, r); ok {
		httputil.JSON(w, http.StatusOK, res)
	}
}

func (c *Controller) DownloadShare(w http.ResponseWriter, r *http.Request) {
	if res, ok := c.resolve(w, r); ok {
		http.Redirect(w, r, res.URL, http.StatusFound)
	}
}

// StreamBlob serves the content behind a short-lived access token for
// backends that cannot presign their own URLs.
func (c *Controller) StreamBlob(w http.ResponseWriter, r *http.Request) {
	claims, rc, err := c.svc.Access.Open(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", claims.MimeType)
	w.Header().Set("Content-Disposition", blob.ContentDisposition(blob.AccessOptions{
		FileName: claims.Name,
		Inline:   claims.Inline,
	}))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Debug("blob stream interrupted", zap.Error(err))
	}
}
