package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/services"
)

type Controller struct {
	svc *services.Service
	cfg *config.ServerCmdConfig
}

func New(svc *services.Service, cfg *config.ServerCmdConfig) *Controller {
	return &Controller{svc: svc, cfg: cfg}
}

func invalidQuery(format string, args ...any) error {
	return errors.Wrapf(services.ErrInvalidQuery, format, args...)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidQuery("%s must be an integer", name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalidQuery("%s must be a boolean", name)
	}
	return b, nil
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, invalidQuery("%s must be a number", name)
	}
	return &f, nil
}

func queryString(r *http.Request, name string) *string {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	return &v
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, invalidQuery("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

// paging reads page and limit with their defaults.
func paging(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", services.DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}
