// Package boiledrepos implements the repositories on Postgres with sqlboiler's query builder.
package boiledrepos

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/darasa/core"
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

const uniqueViolation = "23505"

// newQuery builds a SELECT * over table.
func newQuery(table string, mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	queries.SetFrom(q, table)
	qm.Apply(q, mods...)
	return q
}

// listMods turns opts into ORDER BY, LIMIT & OFFSET clauses. Orderings on columns missing from sortable are ignored.
func listMods(opts core.ListOptions, sortable []string, def ...core.DBOrdering) []qm.QueryMod {
	ordering := opts.Ordering
	if len(ordering) == 0 {
		ordering = def
	}

	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !strmangle.SetInclude(ord.Field, sortable) {
			continue
		}
		ord.Field = strmangle.IdentQuote(dialect.LQ, dialect.RQ, ord.Field)
		clauses = append(clauses, ord.String())
	}
	clauses = append(clauses, `"id" ASC`) // stable pages

	page := opts.Page
	page.Clean()
	mods := []qm.QueryMod{qm.OrderBy(strings.Join(clauses, ", ")), qm.Limit(page.Limit)}
	if page.Offset > 0 {
		mods = append(mods, qm.Offset(page.Offset))
	}
	return mods
}

// trapNoRowsErr maps "no rows" errors to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueConstraint returns the name of the violated unique constraint, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// checkAffected returns notFound when res affected no rows.
func checkAffected(res sql.Result, err, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func likeArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
