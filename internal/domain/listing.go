package domain

import (
	"context"
	"slices"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderField names a sortable enrollment attribute.
type OrderField string

const (
	OrderByStartDate       OrderField = "startDate"
	OrderByProgressPercent OrderField = "progressPercent"
	OrderByLastCheckInAt   OrderField = "lastCheckInAt"
	OrderByCreatedAt       OrderField = "createdAt"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListOptions controls ListForUser. A nil Archived lists both archived and live enrollments.
type ListOptions struct {
	Page     int
	PageSize int
	Archived *bool
	OrderBy  OrderField
	OrderDir SortDirection
}

// Normalize applies defaults and replaces unknown values.
func (o ListOptions) Normalize() ListOptions {
	o.Page, o.PageSize = normalizePage(o.Page, o.PageSize)
	switch o.OrderBy {
	case OrderByStartDate, OrderByProgressPercent, OrderByLastCheckInAt, OrderByCreatedAt:
	default:
		o.OrderBy = OrderByStartDate
	}
	if o.OrderDir != SortAsc {
		o.OrderDir = SortDesc
	}
	return o
}

// Offset is the number of rows skipped before the requested page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// EnrollmentPage is one page of a user's enrollments.
type EnrollmentPage struct {
	Items    []EnrollmentSummary
	Total    int
	Page     int
	PageSize int
}

// ListForUser pages through a user's enrollments with their task totals.
func (s *Service) ListForUser(ctx context.Context, userID string, opts ListOptions) (*EnrollmentPage, error) {
	opts = opts.Normalize()
	items, total, err := s.repo.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []EnrollmentSummary{}
	}
	return &EnrollmentPage{Items: items, Total: total, Page: opts.Page, PageSize: opts.PageSize}, nil
}

// CatalogEntry is a catalog challenge annotated with the user's enrollment, if any.
type CatalogEntry struct {
	Challenge       Challenge
	Enrolled        bool
	EnrollmentID    string
	ProgressPercent int
	IsCompleted     bool
	TasksCompleted  int
}

// CatalogPage is one page of the combined catalog listing.
type CatalogPage struct {
	Items    []CatalogEntry
	Total    int
	Page     int
	PageSize int
}

// ListCombinedForUser merges the active catalog with the user's live enrollments. With
// prioritizeEnrolled the enrolled challenges sort ahead of the rest across all pages.
func (s *Service) ListCombinedForUser(ctx context.Context, userID string, filter CatalogFilter, prioritizeEnrolled bool) (*CatalogPage, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	page, pageSize := filter.Page, filter.PageSize

	query := filter
	if prioritizeEnrolled {
		query.Page, query.PageSize = 1, 0
	}
	challenges, total, err := s.catalog.ListActiveChallenges(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	enrolled, err := s.repo.ActiveByChallenges(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(challenges))
	for _, c := range challenges {
		entry := CatalogEntry{Challenge: c}
		if summary, ok := enrolled[c.ID]; ok {
			entry.Enrolled = true
			entry.EnrollmentID = summary.ID
			entry.ProgressPercent = summary.ProgressPercent
			entry.IsCompleted = summary.IsCompleted
			entry.TasksCompleted = summary.TasksCompleted
		}
		entries = append(entries, entry)
	}

	if prioritizeEnrolled {
		slices.SortStableFunc(entries, func(a, b CatalogEntry) int {
			switch {
			case a.Enrolled == b.Enrolled:
				return 0
			case a.Enrolled:
				return -1
			default:
				return 1
			}
		})
		start := min((page-1)*pageSize, len(entries))
		end := min(start+pageSize, len(entries))
		entries = entries[start:end]
	}

	return &CatalogPage{Items: entries, Total: total, Page: page, PageSize: pageSize}, nil
}
