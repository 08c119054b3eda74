package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// listQuery appends the time window, ordering and paging of opts to base,
// numbering placeholders after the args already present.
func listQuery(base string, args []any, opts domain.ListOpts, order string) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND created_at >= " + next(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND created_at < " + next(*opts.Until))
	}
	b.WriteString(" ORDER BY " + order)
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + next(opts.Offset))
	}
	return b.String(), args
}
