package persistence

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// sortColumns whitelists the columns a listing may be ordered by. Client input
// never reaches ORDER BY unless it names one of them exactly.
type sortColumns map[string]struct{}

func newSortColumns(columns ...string) sortColumns {
	s := make(sortColumns, len(columns))
	for _, c := range columns {
		s[c] = struct{}{}
	}
	return s
}

var (
	batchSortColumns = newSortColumns(
		"created_at", "updated_at", "batch_number", "expiry_date",
		"manufacture_date", "status", "shelf_qty", "sold_qty",
	)
	orderSortColumns = newSortColumns(
		"created_at", "updated_at", "order_number", "status",
		"final_amount", "expiration_date", "completed_at",
	)
)

// column returns the requested column, or fallback when it is not allowed
func (s sortColumns) column(requested, fallback string) string {
	if _, ok := s[strings.TrimSpace(requested)]; ok {
		return strings.TrimSpace(requested)
	}
	return fallback
}

// orderClause renders "<column> ASC|DESC" for a filter. Anything but "asc"
// sorts descending; the id tie-break keeps paging stable.
func (s sortColumns) orderClause(filter shared.Filter, fallback string) string {
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc") {
		dir = "ASC"
	}
	return s.column(filter.OrderBy, fallback) + " " + dir + ", id " + dir
}
