// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"fmt"

	"example.com/challenges/internal/domain"
)

var orderColumns = map[domain.OrderField]string{
	domain.OrderByStartDate:       "e.start_date",
	domain.OrderByProgressPercent: "e.progress_percent",
	domain.OrderByLastCheckInAt:   "e.last_check_in_at",
	domain.OrderByCreatedAt:       "e.created_at",
}

// OrderClause renders a whitelisted ORDER BY for enrollment listings. Nulls sort last
// and the enrollment id breaks ties so pages are stable.
func OrderClause(opts domain.ListOptions) string {
	column, ok := orderColumns[opts.OrderBy]
	if !ok {
		column = orderColumns[domain.OrderByStartDate]
	}
	dir := "DESC"
	if opts.OrderDir == domain.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, e.enrollment_id %s", column, dir, dir)
}

// Window clamps an offset/limit pair to a slice of length n.
func Window(n, offset, limit int) (int, int) {
	start := min(max(offset, 0), n)
	end := min(start+max(limit, 0), n)
	return start, end
}
