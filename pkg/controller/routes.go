package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/middleware"
	"github.com/tgdrive/clouddrive/internal/version"
	"github.com/tgdrive/clouddrive/pkg/httputil"
)

// Routes returns the API handler, meant to be mounted under /api.
func (c *Controller) Routes(verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		httputil.JSON(w, http.StatusOK, version.GetVersionInfo())
	})
	r.Get("/s/{token}", c.ResolveShare)
	r.Get("/s/{token}/download", c.DownloadShare)
	r.Get("/blobs/{token}", c.StreamBlob)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier))

		r.Route("/files", func(r chi.Router) {
			r.Get("/", c.ListFiles)
			r.Post("/", c.UploadFile)
			r.Get("/search", c.SearchFiles)
			r.Get("/trash", c.ListTrash)
			r.Delete("/trash/empty", c.EmptyTrash)
			r.Post("/restore", c.RestoreFiles)
			r.Get("/stats", c.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", c.GetFile)
				r.Patch("/", c.UpdateFile)
				r.Delete("/", c.DeleteFile)
				r.Post("/restore", c.RestoreFile)
				r.Delete("/permanent", c.PurgeFile)
				r.Get("/preview", c.PreviewFile)
				r.Get("/download", c.DownloadFile)
				r.Post("/share", c.ShareFile)
			})
		})

		r.Route("/folders", func(r chi.Router) {
			r.Get("/", c.ListFolders)
			r.Post("/", c.CreateFolder)
			r.Get("/{id}", c.FolderContents)
			r.Get("/{id}/path", c.FolderPath)
			r.Patch("/{id}", c.UpdateFolder)
			r.Delete("/{id}", c.DeleteFolder)
		})

		r.Get("/shares", c.ListShares)
		r.Delete("/shares/{id}", c.RevokeShare)
	})
	return r
}
