package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// listQuery appends the Since/Until window on timeCol, the ordering and the
// paging of opts to a SELECT that has no WHERE clause yet.
func listQuery(base, timeCol, orderBy string, opts domain.ListOpts) (string, []any) {
	var (
		b     strings.Builder
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(base)
	if opts.Since != nil {
		where = append(where, timeCol+" >= "+arg(*opts.Since))
	}
	if opts.Until != nil {
		where = append(where, timeCol+" <= "+arg(*opts.Until))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy)
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}
