package persistence

import (
	"testing"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestSortColumns_OrderClause(t *testing.T) {
	tests := []struct {
		name     string
		filter   shared.Filter
		expected string
	}{
		{"defaults to descending fallback", shared.Filter{}, "created_at DESC, id DESC"},
		{"allowed column ascending", shared.Filter{OrderBy: "final_amount", OrderDir: "asc"}, "final_amount ASC, id ASC"},
		{"direction is case insensitive", shared.Filter{OrderBy: " status ", OrderDir: " ASC "}, "status ASC, id ASC"},
		{"column names are case sensitive", shared.Filter{OrderBy: "STATUS"}, "created_at DESC, id DESC"},
		{"unknown direction sorts descending", shared.Filter{OrderBy: "status", OrderDir: "sideways"}, "status DESC, id DESC"},
		{"batch-only column is rejected", shared.Filter{OrderBy: "shelf_qty"}, "created_at DESC, id DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, orderSortColumns.orderClause(tt.filter, "created_at"))
		})
	}
}

func TestSortColumns_RejectsInjection(t *testing.T) {
	payloads := []string{
		"created_at; DROP TABLE orders;--",
		"created_at' OR '1'='1",
		"created_at, (SELECT secret FROM users)",
		"CASE WHEN 1=1 THEN id ELSE status END",
		"created_at\n; DELETE FROM batches",
	}
	for _, p := range payloads {
		clause := batchSortColumns.orderClause(shared.Filter{OrderBy: p, OrderDir: p}, "expiry_date")
		assert.Equal(t, "expiry_date DESC, id DESC", clause, "payload %q", p)
	}
}
