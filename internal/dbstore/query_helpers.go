package dbstore

import (
	"context"

	"github.com/platzio/platz/internal/perr"
)

// mustSQL renders a squirrel builder, panicking on a malformed query.
// Every caller in this package builds queries from constants and typed
// filters, never from unsanitized user SQL fragments, so a render
// failure here is a programmer error, not a runtime condition -- the
// same assumption the teacher's own squirrel-adjacent query code makes.
func mustSQL(b interface{ ToSql() (string, []any, error) }) (string, []any) {
	q, args, err := b.ToSql()
	if err != nil {
		panic(err)
	}
	return q, args
}

// listPage is the shared implementation behind every List* method:
// build a filtered items query and an unfiltered-page count query from
// the same filter set, and assemble the uniform Page envelope.
func listPage[T any](ctx context.Context, s *Store, table string, filters []Filter, page PageRequest) (*Page[T], error) {
	itemsB, pageNum, perPage := applyPage(
		applyFilters(psql.Select("*").From(table).OrderBy("created_at ASC"), filters),
		page,
	)
	q, args := mustSQL(itemsB)

	items := make([]T, 0)
	if err := s.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "listing %s", table)
	}

	cq, cargs := mustSQL(applyFilters(psql.Select("count(*)").From(table), filters))
	var total int
	if err := s.db.GetContext(ctx, &total, cq, cargs...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "counting %s", table)
	}

	return &Page[T]{Page: pageNum, PerPage: perPage, Items: items, NumTotal: total}, nil
}
