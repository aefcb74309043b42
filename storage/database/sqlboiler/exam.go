package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/exam"
)

var (
	examSortable    = []string{"id", "title", "time_limit_minutes", "is_published", "created_at"}
	attemptSortable = []string{"id", "submitted_at", "reviewed_at"}
)

type (
	examRow struct {
		ID               int64     `boil:"id"`
		TenantID         int64     `boil:"tenant_id"`
		CourseID         int64     `boil:"course_id"`
		CreatedBy        int64     `boil:"created_by"`
		Title            string    `boil:"title"`
		Description      string    `boil:"description"`
		TimeLimitMinutes int       `boil:"time_limit_minutes"`
		IsPublished      bool      `boil:"is_published"`
		CreatedAt        time.Time `boil:"created_at"`
		UpdatedAt        time.Time `boil:"updated_at"`
	}

	questionRow struct {
		ID        int64     `boil:"id"`
		TenantID  int64     `boil:"tenant_id"`
		ExamID    int64     `boil:"exam_id"`
		Prompt    string    `boil:"prompt"`
		Position  int       `boil:"position"`
		Points    int       `boil:"points"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}

	attemptRow struct {
		ID          int64       `boil:"id"`
		TenantID    int64       `boil:"tenant_id"`
		ExamID      int64       `boil:"exam_id"`
		UserID      int64       `boil:"user_id"`
		Answers     types.JSON  `boil:"answers"`
		Feedback    null.String `boil:"feedback"`
		Score       null.Int    `boil:"score"`
		SubmittedAt time.Time   `boil:"submitted_at"`
		ReviewedAt  null.Time   `boil:"reviewed_at"`
		ReviewedBy  null.Int64  `boil:"reviewed_by"`
	}
)

func (r examRow) unboil() exam.Exam {
	return exam.Exam{
		ID:               r.ID,
		TenantID:         r.TenantID,
		CourseID:         r.CourseID,
		CreatedBy:        r.CreatedBy,
		Title:            r.Title,
		Description:      r.Description,
		TimeLimitMinutes: r.TimeLimitMinutes,
		IsPublished:      r.IsPublished,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (r questionRow) unboil() exam.Question {
	return exam.Question{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ExamID:    r.ExamID,
		Prompt:    r.Prompt,
		Position:  r.Position,
		Points:    r.Points,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func boilAttempt(a exam.Attempt) (attemptRow, error) {
	r := attemptRow{
		ID:          a.ID,
		TenantID:    a.TenantID,
		ExamID:      a.ExamID,
		UserID:      a.UserID,
		Feedback:    null.NewString(a.Feedback, a.Feedback != ""),
		Score:       null.IntFromPtr(a.Score),
		SubmittedAt: a.SubmittedAt.UTC(),
		ReviewedAt:  null.TimeFromPtr(a.ReviewedAt),
		ReviewedBy:  null.Int64FromPtr(a.ReviewedBy),
	}
	answers := a.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	if err := r.Answers.Marshal(answers); err != nil {
		return attemptRow{}, errors.Wrap(err, "encoding answers")
	}
	return r, nil
}

func (r attemptRow) unboil() (exam.Attempt, error) {
	a := exam.Attempt{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ExamID:      r.ExamID,
		UserID:      r.UserID,
		Feedback:    r.Feedback.String,
		Score:       r.Score.Ptr(),
		SubmittedAt: r.SubmittedAt.UTC(),
		ReviewedBy:  r.ReviewedBy.Ptr(),
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time.UTC()
		a.ReviewedAt = &t
	}
	if err := r.Answers.Unmarshal(&a.Answers); err != nil {
		return exam.Attempt{}, errors.Wrap(err, "decoding answers")
	}
	return a, nil
}

type examRepository struct {
	exec core.DBExecutor
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(exec core.DBExecutor) exam.Repository {
	return &examRepository{exec: exec}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	err := queries.Raw(
		`INSERT INTO exams (tenant_id, course_id, created_by, title, description, time_limit_minutes, is_published,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		e.TenantID, e.CourseID, e.CreatedBy, e.Title, e.Description, e.TimeLimitMinutes, e.IsPublished,
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&e.ID)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return e, nil
}

func (repo *examRepository) GetExam(ctx context.Context, tenantID, id int64) (exam.Exam, error) {
	var row examRow
	err := newQuery("exams", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "finding exam")
	}
	return row.unboil(), nil
}

func examQueryMods(tenantID int64, filter *exam.ExamFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.Search != "" {
			val := likeArg(filter.Search)
			mods = append(mods, qm.Where("(title ILIKE ? OR description ILIKE ?)", val, val))
		}
		if filter.CourseID != 0 {
			mods = append(mods, qm.Where("course_id = ?", filter.CourseID))
		}
		if filter.IsPublished != nil {
			mods = append(mods, qm.Where("is_published = ?", *filter.IsPublished))
		}
	}
	return append(mods, listMods(opts, examSortable, core.DBOrdering{Field: "created_at"})...)
}

func (repo *examRepository) QueryExams(ctx context.Context, tenantID int64, filter *exam.ExamFilter, opts core.ListOptions) ([]exam.Exam, error) {
	var rows []examRow
	if err := newQuery("exams", examQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, r := range rows {
		exams = append(exams, r.unboil())
	}
	return exams, nil
}

func (repo *examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	res, err := queries.Raw(
		`UPDATE exams SET title = $3, description = $4, time_limit_minutes = $5, is_published = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2`,
		e.TenantID, e.ID, e.Title, e.Description, e.TimeLimitMinutes, e.IsPublished, e.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, exam.ErrNotFound, "updating exam"); err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

// DeleteExam relies on the ON DELETE CASCADE foreign keys to drop questions & attempts.
func (repo *examRepository) DeleteExam(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM exams WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, exam.ErrNotFound, "deleting exam")
}

func (repo *examRepository) CreateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	err := queries.Raw(
		`INSERT INTO questions (tenant_id, exam_id, prompt, position, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		q.TenantID, q.ExamID, q.Prompt, q.Position, q.Points, q.CreatedAt.UTC(), q.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&q.ID)
	if err != nil {
		return exam.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo *examRepository) GetQuestion(ctx context.Context, tenantID, id int64) (exam.Question, error) {
	var row questionRow
	err := newQuery("questions", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return exam.Question{}, trapNoRowsErr(err, exam.ErrQuestionNotFound, "finding question")
	}
	return row.unboil(), nil
}

func (repo *examRepository) QueryQuestions(ctx context.Context, tenantID int64, filter *exam.QuestionFilter) ([]exam.Question, error) {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil && filter.ExamID != 0 {
		mods = append(mods, qm.Where("exam_id = ?", filter.ExamID))
	}
	mods = append(mods, qm.OrderBy("exam_id, position, id"))

	var rows []questionRow
	if err := newQuery("questions", mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]exam.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.unboil())
	}
	return questions, nil
}

func (repo *examRepository) UpdateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	res, err := queries.Raw(
		`UPDATE questions SET prompt = $3, position = $4, points = $5, updated_at = $6 WHERE tenant_id = $1 AND id = $2`,
		q.TenantID, q.ID, q.Prompt, q.Position, q.Points, q.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, exam.ErrQuestionNotFound, "updating question"); err != nil {
		return exam.Question{}, err
	}
	return q, nil
}

func (repo *examRepository) DeleteQuestion(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM questions WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, exam.ErrQuestionNotFound, "deleting question")
}

func (repo *examRepository) CreateAttempt(ctx context.Context, a exam.Attempt) (exam.Attempt, error) {
	r, err := boilAttempt(a)
	if err != nil {
		return exam.Attempt{}, err
	}
	err = queries.Raw(
		`INSERT INTO exam_attempts (tenant_id, exam_id, user_id, answers, feedback, score, submitted_at, reviewed_at, reviewed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		r.TenantID, r.ExamID, r.UserID, r.Answers, r.Feedback, r.Score, r.SubmittedAt, r.ReviewedAt, r.ReviewedBy,
	).QueryRowContext(ctx, repo.exec).Scan(&a.ID)
	if err != nil {
		return exam.Attempt{}, errors.Wrap(err, "inserting exam attempt")
	}
	return a, nil
}

func (repo *examRepository) GetAttempt(ctx context.Context, tenantID, id int64) (exam.Attempt, error) {
	var row attemptRow
	err := newQuery("exam_attempts", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return exam.Attempt{}, trapNoRowsErr(err, exam.ErrAttemptNotFound, "finding exam attempt")
	}
	return row.unboil()
}

func attemptQueryMods(tenantID int64, filter *exam.AttemptFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.ExamID != 0 {
			mods = append(mods, qm.Where("exam_id = ?", filter.ExamID))
		}
		if filter.UserID != 0 {
			mods = append(mods, qm.Where("user_id = ?", filter.UserID))
		}
		if filter.Pending != nil {
			if *filter.Pending {
				mods = append(mods, qm.Where("reviewed_at IS NULL"))
			} else {
				mods = append(mods, qm.Where("reviewed_at IS NOT NULL"))
			}
		}
	}
	return append(mods, listMods(opts, attemptSortable, core.DBOrdering{Field: "submitted_at"}, core.DBOrdering{Field: "id"})...)
}

func (repo *examRepository) QueryAttempts(ctx context.Context, tenantID int64, filter *exam.AttemptFilter, opts core.ListOptions) ([]exam.Attempt, error) {
	var rows []attemptRow
	if err := newQuery("exam_attempts", attemptQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying exam attempts")
	}
	attempts := make([]exam.Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.unboil()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo *examRepository) UpdateAttempt(ctx context.Context, a exam.Attempt) (exam.Attempt, error) {
	r, err := boilAttempt(a)
	if err != nil {
		return exam.Attempt{}, err
	}
	res, err := queries.Raw(
		`UPDATE exam_attempts SET answers = $3, feedback = $4, score = $5, reviewed_at = $6, reviewed_by = $7
		WHERE tenant_id = $1 AND id = $2`,
		r.TenantID, r.ID, r.Answers, r.Feedback, r.Score, r.ReviewedAt, r.ReviewedBy,
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, exam.ErrAttemptNotFound, "updating exam attempt"); err != nil {
		return exam.Attempt{}, err
	}
	return a, nil
}
