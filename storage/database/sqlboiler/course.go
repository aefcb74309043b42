package boiledrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/quiz"
)

var courseSortable = []string{"id", "title", "category", "difficulty", "duration_minutes", "created_at", "updated_at"}

type (
	courseRow struct {
		ID                 int64     `boil:"id"`
		TenantID           int64     `boil:"tenant_id"`
		CreatedBy          int64     `boil:"created_by"`
		Title              string    `boil:"title"`
		Description        string    `boil:"description"`
		Category           string    `boil:"category"`
		Difficulty         string    `boil:"difficulty"`
		DurationMinutes    int       `boil:"duration_minutes"`
		ModuleCount        int       `boil:"module_count"`
		LessonCount        int       `boil:"lesson_count"`
		EnrollmentRequired bool      `boil:"enrollment_required"`
		CreatedAt          time.Time `boil:"created_at"`
		UpdatedAt          time.Time `boil:"updated_at"`
	}

	moduleRow struct {
		ID          int64     `boil:"id"`
		TenantID    int64     `boil:"tenant_id"`
		CourseID    int64     `boil:"course_id"`
		Title       string    `boil:"title"`
		Description string    `boil:"description"`
		Position    int       `boil:"position"`
		CreatedAt   time.Time `boil:"created_at"`
		UpdatedAt   time.Time `boil:"updated_at"`
	}

	lessonRow struct {
		ID              int64     `boil:"id"`
		TenantID        int64     `boil:"tenant_id"`
		CourseID        int64     `boil:"course_id"`
		ModuleID        int64     `boil:"module_id"`
		Title           string    `boil:"title"`
		ContentType     string    `boil:"content_type"`
		Body            string    `boil:"body"`
		AssetKey        string    `boil:"asset_key"`
		Quiz            null.JSON `boil:"quiz"`
		Position        int       `boil:"position"`
		DurationMinutes int       `boil:"duration_minutes"`
		CreatedAt       time.Time `boil:"created_at"`
		UpdatedAt       time.Time `boil:"updated_at"`
	}
)

func (r courseRow) unboil() course.Course {
	return course.Course{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		CreatedBy:          r.CreatedBy,
		Title:              r.Title,
		Description:        r.Description,
		Category:           r.Category,
		Difficulty:         course.Difficulty(r.Difficulty),
		DurationMinutes:    r.DurationMinutes,
		ModuleCount:        r.ModuleCount,
		LessonCount:        r.LessonCount,
		EnrollmentRequired: r.EnrollmentRequired,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func (r moduleRow) unboil() course.Module {
	return course.Module{
		ID:          r.ID,
		TenantID:    r.TenantID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Position:    r.Position,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r lessonRow) unboil() course.Lesson {
	l := course.Lesson{
		ID:              r.ID,
		TenantID:        r.TenantID,
		CourseID:        r.CourseID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		ContentType:     course.ContentType(r.ContentType),
		Body:            r.Body,
		AssetKey:        r.AssetKey,
		Position:        r.Position,
		DurationMinutes: r.DurationMinutes,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.Quiz.Valid {
		p := quiz.Decode(r.Quiz.JSON)
		l.Quiz = &p
	}
	return l
}

func boilQuiz(p *quiz.Payload) (null.JSON, error) {
	if p == nil {
		return null.JSON{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding quiz")
	}
	return null.JSONFrom(raw), nil
}

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) course.Repository {
	return &courseRepository{exec: exec}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := queries.Raw(
		`INSERT INTO courses (tenant_id, created_by, title, description, category, difficulty, duration_minutes,
			module_count, lesson_count, enrollment_required, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		c.TenantID, c.CreatedBy, c.Title, c.Description, c.Category, string(c.Difficulty), c.DurationMinutes,
		c.ModuleCount, c.LessonCount, c.EnrollmentRequired, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&c.ID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, tenantID, id int64) (course.Course, error) {
	var row courseRow
	err := newQuery("courses", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.unboil(), nil
}

func courseQueryMods(tenantID int64, filter *course.CourseFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.Search != "" {
			val := likeArg(filter.Search)
			mods = append(mods, qm.Where("(title ILIKE ? OR description ILIKE ?)", val, val))
		}
		if filter.Category != "" {
			mods = append(mods, qm.Where("category ILIKE ?", likeArg(filter.Category)))
		}
		if filter.Difficulty != "" {
			mods = append(mods, qm.Where("difficulty = ?", string(filter.Difficulty)))
		}
		if filter.CreatedBy != 0 {
			mods = append(mods, qm.Where("created_by = ?", filter.CreatedBy))
		}
	}
	return append(mods, listMods(opts, courseSortable, core.DBOrdering{Field: "created_at"})...)
}

func (repo *courseRepository) QueryCourses(ctx context.Context, tenantID int64, filter *course.CourseFilter, opts core.ListOptions) ([]course.Course, error) {
	var rows []courseRow
	if err := newQuery("courses", courseQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unboil())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	res, err := queries.Raw(
		`UPDATE courses SET title = $3, description = $4, category = $5, difficulty = $6, duration_minutes = $7,
			module_count = $8, lesson_count = $9, enrollment_required = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2`,
		c.TenantID, c.ID, c.Title, c.Description, c.Category, string(c.Difficulty), c.DurationMinutes,
		c.ModuleCount, c.LessonCount, c.EnrollmentRequired, c.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

// DeleteCourse relies on the ON DELETE CASCADE foreign keys to drop the course content.
func (repo *courseRepository) DeleteCourse(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM courses WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, course.ErrNotFound, "deleting course")
}

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module) (course.Module, error) {
	err := queries.Raw(
		`INSERT INTO modules (tenant_id, course_id, title, description, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.TenantID, m.CourseID, m.Title, m.Description, m.Position, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&m.ID)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, tenantID, id int64) (course.Module, error) {
	var row moduleRow
	err := newQuery("modules", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "finding module")
	}
	return row.unboil(), nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, tenantID int64, filter *course.ModuleFilter) ([]course.Module, error) {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil && filter.CourseID != 0 {
		mods = append(mods, qm.Where("course_id = ?", filter.CourseID))
	}
	mods = append(mods, qm.OrderBy("course_id, position, id"))

	var rows []moduleRow
	if err := newQuery("modules", mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		modules = append(modules, r.unboil())
	}
	return modules, nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, m course.Module) (course.Module, error) {
	res, err := queries.Raw(
		`UPDATE modules SET title = $3, description = $4, position = $5, updated_at = $6 WHERE tenant_id = $1 AND id = $2`,
		m.TenantID, m.ID, m.Title, m.Description, m.Position, m.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, course.ErrModuleNotFound, "updating module"); err != nil {
		return course.Module{}, err
	}
	return m, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM modules WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, course.ErrModuleNotFound, "deleting module")
}

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	qz, err := boilQuiz(l.Quiz)
	if err != nil {
		return course.Lesson{}, err
	}
	err = queries.Raw(
		`INSERT INTO lessons (tenant_id, course_id, module_id, title, content_type, body, asset_key, quiz, position,
			duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		l.TenantID, l.CourseID, l.ModuleID, l.Title, string(l.ContentType), l.Body, l.AssetKey, qz, l.Position,
		l.DurationMinutes, l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&l.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo *courseRepository) GetLesson(ctx context.Context, tenantID, id int64) (course.Lesson, error) {
	var row lessonRow
	err := newQuery("lessons", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound, "finding lesson")
	}
	return row.unboil(), nil
}

func lessonQueryMods(tenantID int64, filter *course.LessonFilter) []qm.QueryMod {
	mods := []qm.QueryMod{
		qm.Select("lessons.*"),
		qm.InnerJoin("modules ON modules.id = lessons.module_id"),
		qm.Where("lessons.tenant_id = ?", tenantID),
	}
	if filter != nil {
		if filter.CourseID != 0 {
			mods = append(mods, qm.Where("lessons.course_id = ?", filter.CourseID))
		}
		if filter.ModuleID != 0 {
			mods = append(mods, qm.Where("lessons.module_id = ?", filter.ModuleID))
		}
		if filter.ContentType != "" {
			mods = append(mods, qm.Where("lessons.content_type = ?", string(filter.ContentType)))
		}
	}
	return append(mods, qm.OrderBy("modules.position, lessons.module_id, lessons.position, lessons.id"))
}

func (repo *courseRepository) QueryLessons(ctx context.Context, tenantID int64, filter *course.LessonFilter) ([]course.Lesson, error) {
	var rows []lessonRow
	if err := newQuery("lessons", lessonQueryMods(tenantID, filter)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.unboil())
	}
	return lessons, nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	qz, err := boilQuiz(l.Quiz)
	if err != nil {
		return course.Lesson{}, err
	}
	res, err := queries.Raw(
		`UPDATE lessons SET title = $3, body = $4, asset_key = $5, quiz = $6, position = $7, duration_minutes = $8,
			updated_at = $9
		WHERE tenant_id = $1 AND id = $2`,
		l.TenantID, l.ID, l.Title, l.Body, l.AssetKey, qz, l.Position, l.DurationMinutes, l.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, course.ErrLessonNotFound, "updating lesson"); err != nil {
		return course.Lesson{}, err
	}
	return l, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM lessons WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, course.ErrLessonNotFound, "deleting lesson")
}

func (repo *courseRepository) CountContent(ctx context.Context, tenantID, courseID int64) (int, int, error) {
	var modules, lessons int
	err := queries.Raw(
		`SELECT
			(SELECT count(*) FROM modules WHERE tenant_id = $1 AND course_id = $2),
			(SELECT count(*) FROM lessons WHERE tenant_id = $1 AND course_id = $2)`,
		tenantID, courseID,
	).QueryRowContext(ctx, repo.exec).Scan(&modules, &lessons)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting course content")
	}
	return modules, lessons, nil
}
