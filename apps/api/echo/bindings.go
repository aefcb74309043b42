package echoapi

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
	offsetParam   = "offset"
)

// Ordering binds `?ordering=name,-created_at` to DB orderings. Fields are snake-cased.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: snakeCase(field), Ascending: !descending})
	}
}

// snakeCase turns `createdAt` into `created_at`. Runs of capitals stay together: `userID` is `user_id`.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// listOptions binds the ordering & the `limit`/`offset` page of a list request.
func listOptions(ctx echo.Context) (core.ListOptions, error) {
	var ord Ordering
	ord.Bind(ctx)
	opts := core.ListOptions{Ordering: ord.Orderings}

	var flds []core.FieldError
	if v := ctx.QueryParam(limitParam); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			flds = append(flds, core.FieldError{Field: limitParam, Error: "must be a positive integer"})
		}
		opts.Page.Limit = limit
	}
	if v := ctx.QueryParam(offsetParam); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			flds = append(flds, core.FieldError{Field: offsetParam, Error: "must be a positive integer"})
		}
		opts.Page.Offset = offset
	}
	if flds != nil {
		return core.ListOptions{}, core.NewValidationError(nil, flds...)
	}
	return opts, nil
}

func parseID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.QueryParam(name), 10, 64)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return id, nil
}

// optionalID parses an optional integer query param, 0 when absent.
func optionalID(ctx echo.Context, name string) (int64, error) {
	if ctx.QueryParam(name) == "" {
		return 0, nil
	}
	return parseID(ctx, name)
}

// queryBool parses an optional boolean query param, nil when absent.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a boolean"})
	}
	return &b, nil
}

// queryTime parses an optional RFC 3339 (or YYYY-MM-DD) query param, zero when absent.
func queryTime(ctx echo.Context, name string) (time.Time, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a date"})
}
