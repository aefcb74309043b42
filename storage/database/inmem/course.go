package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/exam"
)

var courseFields = fieldGetters[course.Course]{
	"id":               func(c course.Course) interface{} { return c.ID },
	"title":            func(c course.Course) interface{} { return c.Title },
	"category":         func(c course.Course) interface{} { return c.Category },
	"difficulty":       func(c course.Course) interface{} { return string(c.Difficulty) },
	"duration_minutes": func(c course.Course) interface{} { return c.DurationMinutes },
	"created_at":       func(c course.Course) interface{} { return c.CreatedAt },
	"updated_at":       func(c course.Course) interface{} { return c.UpdatedAt },
}

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// lessons are stored with a copy of their quiz.
func cloneLesson(l course.Lesson) course.Lesson {
	if l.Quiz != nil {
		q := *l.Quiz
		l.Quiz = &q
	}
	return l
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.courses.nextID()
	repo.db.courses.rows[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, tenantID, id int64) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses.rows[id]; ok && c.TenantID == tenantID {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, tenantID int64, filter *course.CourseFilter, opts core.ListOptions) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(course.CourseFilter)
	}
	rows := repo.db.courses.list(func(c course.Course) bool {
		if c.TenantID != tenantID {
			return false
		}
		if s := filter.Search; s != "" && !(containsFold(c.Title, s) || containsFold(c.Description, s)) {
			return false
		}
		if filter.Category != "" && !containsFold(c.Category, filter.Category) {
			return false
		}
		if filter.Difficulty != "" && c.Difficulty != filter.Difficulty {
			return false
		}
		return filter.CreatedBy == 0 || c.CreatedBy == filter.CreatedBy
	})
	return orderAndPage(rows, opts, courseFields, desc("created_at")), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.courses.rows[c.ID]; !ok || orig.TenantID != c.TenantID {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses.rows[c.ID] = c
	return c, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if c, ok := repo.db.courses.rows[id]; !ok || c.TenantID != tenantID {
		return course.ErrNotFound
	}
	delete(repo.db.courses.rows, id)
	repo.db.modules.deleteWhere(func(m course.Module) bool { return m.CourseID == id })
	repo.db.lessons.deleteWhere(func(l course.Lesson) bool { return l.CourseID == id })
	repo.db.enrollments.deleteWhere(func(e enrollment.Enrollment) bool { return e.CourseID == id })

	examIDs := make(map[int64]bool)
	repo.db.exams.deleteWhere(func(e exam.Exam) bool {
		if e.CourseID == id {
			examIDs[e.ID] = true
			return true
		}
		return false
	})
	repo.db.deleteExamsContent(examIDs)

	batchIDs := make(map[int64]bool)
	repo.db.batches.deleteWhere(func(b batch.Batch) bool {
		if b.CourseID == id {
			batchIDs[b.ID] = true
			return true
		}
		return false
	})
	repo.db.batchMembers.deleteWhere(func(e batch.Enrollment) bool { return batchIDs[e.BatchID] })
	return nil
}

func (repo *courseRepository) CreateModule(_ context.Context, m course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = repo.db.modules.nextID()
	repo.db.modules.rows[m.ID] = m
	return m, nil
}

func (repo *courseRepository) GetModule(_ context.Context, tenantID, id int64) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.modules.rows[id]; ok && m.TenantID == tenantID {
		return m, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) QueryModules(_ context.Context, tenantID int64, filter *course.ModuleFilter) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(course.ModuleFilter)
	}
	rows := repo.db.modules.list(func(m course.Module) bool {
		return m.TenantID == tenantID && (filter.CourseID == 0 || m.CourseID == filter.CourseID)
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CourseID != rows[j].CourseID {
			return rows[i].CourseID < rows[j].CourseID
		}
		return rows[i].Position < rows[j].Position
	})
	return rows, nil
}

func (repo *courseRepository) UpdateModule(_ context.Context, m course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.modules.rows[m.ID]; !ok || orig.TenantID != m.TenantID {
		return course.Module{}, course.ErrModuleNotFound
	}
	repo.db.modules.rows[m.ID] = m
	return m, nil
}

func (repo *courseRepository) DeleteModule(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if m, ok := repo.db.modules.rows[id]; !ok || m.TenantID != tenantID {
		return course.ErrModuleNotFound
	}
	delete(repo.db.modules.rows, id)
	repo.db.lessons.deleteWhere(func(l course.Lesson) bool { return l.ModuleID == id })
	return nil
}

func (repo *courseRepository) CreateLesson(_ context.Context, l course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = repo.db.lessons.nextID()
	repo.db.lessons.rows[l.ID] = cloneLesson(l)
	return l, nil
}

func (repo *courseRepository) GetLesson(_ context.Context, tenantID, id int64) (course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if l, ok := repo.db.lessons.rows[id]; ok && l.TenantID == tenantID {
		return cloneLesson(l), nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) QueryLessons(_ context.Context, tenantID int64, filter *course.LessonFilter) ([]course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(course.LessonFilter)
	}
	rows := repo.db.lessons.list(func(l course.Lesson) bool {
		if l.TenantID != tenantID {
			return false
		}
		if filter.CourseID != 0 && l.CourseID != filter.CourseID {
			return false
		}
		if filter.ModuleID != 0 && l.ModuleID != filter.ModuleID {
			return false
		}
		return filter.ContentType == "" || l.ContentType == filter.ContentType
	})

	modulePos := func(id int64) int { return repo.db.modules.rows[id].Position }
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ModuleID != rows[j].ModuleID {
			pi, pj := modulePos(rows[i].ModuleID), modulePos(rows[j].ModuleID)
			if pi != pj {
				return pi < pj
			}
			return rows[i].ModuleID < rows[j].ModuleID
		}
		return rows[i].Position < rows[j].Position
	})
	for i := range rows {
		rows[i] = cloneLesson(rows[i])
	}
	return rows, nil
}

func (repo *courseRepository) UpdateLesson(_ context.Context, l course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.lessons.rows[l.ID]; !ok || orig.TenantID != l.TenantID {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	repo.db.lessons.rows[l.ID] = cloneLesson(l)
	return l, nil
}

func (repo *courseRepository) DeleteLesson(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if l, ok := repo.db.lessons.rows[id]; !ok || l.TenantID != tenantID {
		return course.ErrLessonNotFound
	}
	delete(repo.db.lessons.rows, id)
	return nil
}

func (repo *courseRepository) CountContent(_ context.Context, tenantID, courseID int64) (int, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var modules, lessons int
	for _, m := range repo.db.modules.rows {
		if m.TenantID == tenantID && m.CourseID == courseID {
			modules++
		}
	}
	for _, l := range repo.db.lessons.rows {
		if l.TenantID == tenantID && l.CourseID == courseID {
			lessons++
		}
	}
	return modules, lessons, nil
}
