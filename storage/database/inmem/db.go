// Package inmemdb implements every repository in memory, for tests and demos.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

type (
	table[T any] struct {
		rows map[int64]T
		seq  int64
	}

	// DB holds all the tables behind a single lock so that deletions can cascade.
	DB struct {
		mu sync.RWMutex

		tenants      *table[tenant.Tenant]
		users        *table[user.User]
		courses      *table[course.Course]
		modules      *table[course.Module]
		lessons      *table[course.Lesson]
		enrollments  *table[enrollment.Enrollment]
		exams        *table[exam.Exam]
		questions    *table[exam.Question]
		attempts     *table[exam.Attempt]
		activityLogs *table[activity.Log]
		batches      *table[batch.Batch]
		batchMembers *table[batch.Enrollment]
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

func (t *table[T]) nextID() int64 {
	t.seq++
	return t.seq
}

// list returns the rows matching keep, ordered by primary key.
func (t *table[T]) list(keep func(T) bool) []T {
	ids := make([]int64, 0, len(t.rows))
	for id, row := range t.rows {
		if keep == nil || keep(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]T, len(ids))
	for i, id := range ids {
		rows[i] = t.rows[id]
	}
	return rows
}

func (t *table[T]) deleteWhere(match func(T) bool) {
	for id, row := range t.rows {
		if match(row) {
			delete(t.rows, id)
		}
	}
}

func Open() *DB {
	db := new(DB)
	db.reset()
	return db
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.tenants = newTable[tenant.Tenant]()
	db.users = newTable[user.User]()
	db.courses = newTable[course.Course]()
	db.modules = newTable[course.Module]()
	db.lessons = newTable[course.Lesson]()
	db.enrollments = newTable[enrollment.Enrollment]()
	db.exams = newTable[exam.Exam]()
	db.questions = newTable[exam.Question]()
	db.attempts = newTable[exam.Attempt]()
	db.activityLogs = newTable[activity.Log]()
	db.batches = newTable[batch.Batch]()
	db.batchMembers = newTable[batch.Enrollment]()
}

// fieldGetters maps the orderable fields of a row to their values.
type fieldGetters[T any] map[string]func(T) interface{}

// orderAndPage sorts rows by opts.Ordering (falling back to def) then applies the pagination.
// Unknown fields are ignored.
func orderAndPage[T any](rows []T, opts core.ListOptions, fields fieldGetters[T], def ...core.DBOrdering) []T {
	ordering := opts.Ordering
	if len(ordering) == 0 {
		ordering = def
	}
	var known []core.DBOrdering
	for _, ord := range ordering {
		if _, ok := fields[ord.Field]; ok {
			known = append(known, ord)
		}
	}
	if len(known) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, ord := range known {
				get := fields[ord.Field]
				c := compare(get(rows[i]), get(rows[j]))
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}

	start, end := opts.Page.Window(len(rows))
	return rows[start:end]
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case int64:
		return cmpOrdered(av, b.(int64))
	case int:
		return cmpOrdered(av, b.(int))
	case float64:
		return cmpOrdered(av, b.(float64))
	case string:
		return cmpOrdered(strings.ToLower(av), strings.ToLower(b.(string)))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func cmpOrdered[V int | int64 | float64 | string](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func desc(field string) core.DBOrdering { return core.DBOrdering{Field: field} }
func asc(field string) core.DBOrdering  { return core.DBOrdering{Field: field, Ascending: true} }
