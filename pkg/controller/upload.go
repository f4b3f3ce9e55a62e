package controller

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/pkg/httputil"
	"github.com/tgdrive/clouddrive/pkg/services"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the upload limit
const formOverhead = 1 << 20

// UploadFile accepts a multipart form with a "file" part and optional
// "folder_id" and "mime_type" fields. The file part is spooled to a temporary
// file so it can be sniffed, hashed and retried from the start.
func (c *Controller) UploadFile(w http.ResponseWriter, r *http.Request) {
	if limit := c.cfg.Storage.MaxUploadSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		httputil.NewError(w, r, errors.Wrapf(services.ErrInvalidInput, "expected multipart form: %v", err))
		return
	}

	in := &services.UploadInput{Size: -1}
	var tmp *os.File
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			httputil.NewError(w, r, formErr(err))
			return
		}
		switch part.FormName() {
		case "file":
			if tmp != nil {
				httputil.NewError(w, r, errors.Wrap(services.ErrInvalidInput, "only one file per request"))
				return
			}
			tmp, err = os.CreateTemp("", "clouddrive-upload-*")
			if err != nil {
				httputil.NewError(w, r, errors.Wrap(err, "create spool file"))
				return
			}
			n, err := io.Copy(tmp, part)
			if err != nil {
				httputil.NewError(w, r, formErr(err))
				return
			}
			in.Name = part.FileName()
			in.Size = n
			if ct := part.Header.Get("Content-Type"); ct != "" && in.MimeType == "" {
				in.MimeType = ct
			}
		case "folder_id":
			v, err := formValue(part)
			if err != nil {
				httputil.NewError(w, r, formErr(err))
				return
			}
			in.FolderID = &v
		case "mime_type":
			v, err := formValue(part)
			if err != nil {
				httputil.NewError(w, r, formErr(err))
				return
			}
			in.MimeType = v
		}
		part.Close()
	}
	if tmp == nil {
		httputil.NewError(w, r, errors.Wrap(services.ErrInvalidInput, "missing file part"))
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		httputil.NewError(w, r, errors.Wrap(err, "rewind spool file"))
		return
	}
	in.Content = tmp

	res, err := c.svc.Files.Upload(r.Context(), auth.GetUser(r.Context()), in)
	if err != nil {
		httputil.NewError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("upload complete", zap.String("id", res.ID), zap.Int64("size", res.Size))
	httputil.JSON(w, http.StatusCreated, res)
}

func formValue(p *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(p, 4096))
	return string(b), err
}

func formErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.Wrapf(services.ErrInvalidInput, "upload exceeds %d bytes", tooLarge.Limit)
	}
	return errors.Wrapf(services.ErrInvalidInput, "malformed multipart form: %v", err)
}
