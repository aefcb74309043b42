package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/exam"
)

var (
	examFields = fieldGetters[exam.Exam]{
		"id":                 func(e exam.Exam) interface{} { return e.ID },
		"title":              func(e exam.Exam) interface{} { return e.Title },
		"time_limit_minutes": func(e exam.Exam) interface{} { return e.TimeLimitMinutes },
		"is_published":       func(e exam.Exam) interface{} { return e.IsPublished },
		"created_at":         func(e exam.Exam) interface{} { return e.CreatedAt },
	}
	attemptFields = fieldGetters[exam.Attempt]{
		"id":           func(a exam.Attempt) interface{} { return a.ID },
		"submitted_at": func(a exam.Attempt) interface{} { return a.SubmittedAt },
	}
)

type examRepository struct {
	db *DB
}

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func cloneAttempt(a exam.Attempt) exam.Attempt {
	answers := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}

// deleteExamsContent deletes the questions & attempts of the exams; the caller holds the lock.
func (db *DB) deleteExamsContent(examIDs map[int64]bool) {
	db.questions.deleteWhere(func(q exam.Question) bool { return examIDs[q.ExamID] })
	db.attempts.deleteWhere(func(a exam.Attempt) bool { return examIDs[a.ExamID] })
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e.ID = repo.db.exams.nextID()
	repo.db.exams.rows[e.ID] = e
	return e, nil
}

func (repo *examRepository) GetExam(_ context.Context, tenantID, id int64) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.exams.rows[id]; ok && e.TenantID == tenantID {
		return e, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, tenantID int64, filter *exam.ExamFilter, opts core.ListOptions) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(exam.ExamFilter)
	}
	rows := repo.db.exams.list(func(e exam.Exam) bool {
		if e.TenantID != tenantID {
			return false
		}
		if s := filter.Search; s != "" && !(containsFold(e.Title, s) || containsFold(e.Description, s)) {
			return false
		}
		if filter.CourseID != 0 && e.CourseID != filter.CourseID {
			return false
		}
		return filter.IsPublished == nil || e.IsPublished == *filter.IsPublished
	})
	return orderAndPage(rows, opts, examFields, desc("created_at")), nil
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.exams.rows[e.ID]; !ok || orig.TenantID != e.TenantID {
		return exam.Exam{}, exam.ErrNotFound
	}
	repo.db.exams.rows[e.ID] = e
	return e, nil
}

func (repo *examRepository) DeleteExam(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e, ok := repo.db.exams.rows[id]; !ok || e.TenantID != tenantID {
		return exam.ErrNotFound
	}
	delete(repo.db.exams.rows, id)
	repo.db.deleteExamsContent(map[int64]bool{id: true})
	return nil
}

func (repo *examRepository) CreateQuestion(_ context.Context, q exam.Question) (exam.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	q.ID = repo.db.questions.nextID()
	repo.db.questions.rows[q.ID] = q
	return q, nil
}

func (repo *examRepository) GetQuestion(_ context.Context, tenantID, id int64) (exam.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions.rows[id]; ok && q.TenantID == tenantID {
		return q, nil
	}
	return exam.Question{}, exam.ErrQuestionNotFound
}

func (repo *examRepository) QueryQuestions(_ context.Context, tenantID int64, filter *exam.QuestionFilter) ([]exam.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(exam.QuestionFilter)
	}
	rows := repo.db.questions.list(func(q exam.Question) bool {
		return q.TenantID == tenantID && (filter.ExamID == 0 || q.ExamID == filter.ExamID)
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ExamID != rows[j].ExamID {
			return rows[i].ExamID < rows[j].ExamID
		}
		return rows[i].Position < rows[j].Position
	})
	return rows, nil
}

func (repo *examRepository) UpdateQuestion(_ context.Context, q exam.Question) (exam.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.questions.rows[q.ID]; !ok || orig.TenantID != q.TenantID {
		return exam.Question{}, exam.ErrQuestionNotFound
	}
	repo.db.questions.rows[q.ID] = q
	return q, nil
}

func (repo *examRepository) DeleteQuestion(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if q, ok := repo.db.questions.rows[id]; !ok || q.TenantID != tenantID {
		return exam.ErrQuestionNotFound
	}
	delete(repo.db.questions.rows, id)
	return nil
}

func (repo *examRepository) CreateAttempt(_ context.Context, a exam.Attempt) (exam.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.attempts.nextID()
	repo.db.attempts.rows[a.ID] = cloneAttempt(a)
	return a, nil
}

func (repo *examRepository) GetAttempt(_ context.Context, tenantID, id int64) (exam.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.attempts.rows[id]; ok && a.TenantID == tenantID {
		return cloneAttempt(a), nil
	}
	return exam.Attempt{}, exam.ErrAttemptNotFound
}

func (repo *examRepository) QueryAttempts(_ context.Context, tenantID int64, filter *exam.AttemptFilter, opts core.ListOptions) ([]exam.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(exam.AttemptFilter)
	}
	rows := repo.db.attempts.list(func(a exam.Attempt) bool {
		if a.TenantID != tenantID {
			return false
		}
		if filter.ExamID != 0 && a.ExamID != filter.ExamID {
			return false
		}
		if filter.UserID != 0 && a.UserID != filter.UserID {
			return false
		}
		return filter.Pending == nil || a.IsReviewed() != *filter.Pending
	})
	rows = orderAndPage(rows, opts, attemptFields, desc("submitted_at"), desc("id"))
	for i := range rows {
		rows[i] = cloneAttempt(rows[i])
	}
	return rows, nil
}

func (repo *examRepository) UpdateAttempt(_ context.Context, a exam.Attempt) (exam.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.attempts.rows[a.ID]; !ok || orig.TenantID != a.TenantID {
		return exam.Attempt{}, exam.ErrAttemptNotFound
	}
	repo.db.attempts.rows[a.ID] = cloneAttempt(a)
	return a, nil
}
