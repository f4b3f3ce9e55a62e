package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/tgdrive/clouddrive/internal/category"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
)

// MB is the unit of the size filters.
const MB = 1 << 20

const dateLayout = "2006-01-02"

type SearchService struct {
	listing *ListService
}

// SearchParams are the raw search inputs. Sizes are in MB; dates are either
// YYYY-MM-DD or RFC 3339.
type SearchParams struct {
	Query    string
	Type     string
	SizeMin  *float64
	SizeMax  *float64
	DateFrom string
	DateTo   string
	FolderID *string
	Page     int
	Limit    int
	AsOf     time.Time
}

func (p *SearchParams) empty() bool {
	return strings.TrimSpace(p.Query) == "" && p.Type == "" && p.SizeMin == nil &&
		p.SizeMax == nil && p.DateFrom == "" && p.DateTo == "" && p.FolderID == nil
}

// Search matches active files by name substring and filters. Trashed files
// never appear.
func (s *SearchService) Search(ctx context.Context, ownerID string, p SearchParams) (*schemas.FileList, error) {
	if p.empty() {
		return nil, fail(ErrInvalidQuery, "a query or at least one filter is required")
	}
	if err := checkPage(p.Page, p.Limit); err != nil {
		return nil, err
	}
	active := models.StateActive
	filter := store.FileFilter{
		OwnerID:      ownerID,
		Status:       &active,
		NameContains: strings.TrimSpace(p.Query),
	}
	if p.Type != "" {
		c, ok := category.Parse(p.Type)
		if !ok {
			return nil, fail(ErrInvalidQuery, "unknown type %q", p.Type)
		}
		filter.Category = string(c)
	}

	var err error
	if filter.SizeMin, err = megabytes("size_min", p.SizeMin); err != nil {
		return nil, err
	}
	if filter.SizeMax, err = megabytes("size_max", p.SizeMax); err != nil {
		return nil, err
	}
	if filter.SizeMin != nil && filter.SizeMax != nil && *filter.SizeMin > *filter.SizeMax {
		return nil, fail(ErrInvalidQuery, "size_min is greater than size_max")
	}

	if p.DateFrom != "" {
		t, _, err := parseDate(p.DateFrom)
		if err != nil {
			return nil, fail(ErrInvalidQuery, "invalid date_from %q", p.DateFrom)
		}
		filter.CreatedFrom = &t
	}
	if p.DateTo != "" {
		t, day, err := parseDate(p.DateTo)
		if err != nil {
			return nil, fail(ErrInvalidQuery, "invalid date_to %q", p.DateTo)
		}
		if day {
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		filter.CreatedTo = &t
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return nil, fail(ErrInvalidQuery, "date_from is after date_to")
	}

	if filter.Folder, err = s.listing.scope(ctx, ownerID, p.FolderID); err != nil {
		return nil, err
	}
	return s.listing.page(ctx, filter, p.Page, p.Limit, p.AsOf)
}

func megabytes(name string, v *float64) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil, fail(ErrInvalidQuery, "%s must be a non-negative number", name)
	}
	n := int64(math.Round(*v * MB))
	return &n, nil
}

// parseDate reports whether s was a bare calendar day.
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
