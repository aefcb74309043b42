package exam

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("exam")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	ErrAttemptNotFound  = core.NewNotFoundError("exam attempt")
	ErrNotPublished     = errors.New("this exam is not open for submissions")
	ErrScoreTooHigh     = errors.New("score exceeds the exam's total points")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		GetExam(ctx context.Context, tenantID, id int64) (Exam, error)
		QueryExams(ctx context.Context, tenantID int64, filter *ExamFilter, opts core.ListOptions) ([]Exam, error)
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
		// DeleteExam deletes the exam with its questions & attempts.
		DeleteExam(ctx context.Context, tenantID, id int64) error

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, tenantID, id int64) (Question, error)
		// QueryQuestions lists questions ordered by position.
		QueryQuestions(ctx context.Context, tenantID int64, filter *QuestionFilter) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, tenantID, id int64) error

		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, tenantID, id int64) (Attempt, error)
		// QueryAttempts lists attempts, newest first by default.
		QueryAttempts(ctx context.Context, tenantID int64, filter *AttemptFilter, opts core.ListOptions) ([]Attempt, error)
		UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	}

	Service interface {
		CreateExam(ctx context.Context, tenantID, creatorID int64, ne NewExam) (Exam, error)
		GetExam(ctx context.Context, tenantID, id int64) (Exam, error)
		QueryExams(ctx context.Context, tenantID int64, filter *ExamFilter, opts core.ListOptions) ([]Exam, error)
		UpdateExam(ctx context.Context, e Exam, ue UpdateExam) (Exam, error)
		DeleteExam(ctx context.Context, e Exam) error

		CreateQuestion(ctx context.Context, tenantID int64, nq NewQuestion) (Question, error)
		GetQuestion(ctx context.Context, tenantID, id int64) (Question, error)
		QueryQuestions(ctx context.Context, tenantID int64, filter *QuestionFilter) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question, uq UpdateQuestion) (Question, error)
		DeleteQuestion(ctx context.Context, q Question) error

		// SubmitAttempt records the answers of usr to a published Exam.
		SubmitAttempt(ctx context.Context, usr user.User, na NewAttempt) (Attempt, error)
		GetAttempt(ctx context.Context, tenantID, id int64) (Attempt, error)
		QueryAttempts(ctx context.Context, tenantID int64, filter *AttemptFilter, opts core.ListOptions) ([]Attempt, error)
		// ReviewAttempt stores the reviewer's feedback & score, then notifies the student by email.
		ReviewAttempt(ctx context.Context, reviewer user.User, a Attempt, r Review) (Attempt, error)
	}

	service struct {
		repo    Repository
		courses course.Service
		users   user.Service
		mailSvc core.EmailService
		logger  core.Logger
		async   func(func())
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courses course.Service, users user.Service, mailSvc core.EmailService, logger core.Logger) Service {
	return newService(repo, courses, users, mailSvc, logger)
}

func newService(repo Repository, courses course.Service, users user.Service, mailSvc core.EmailService, logger core.Logger) *service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		repo:    repo,
		courses: courses,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		async:   func(f func()) { go f() },
	}
}

func (svc *service) CreateExam(ctx context.Context, tenantID, creatorID int64, ne NewExam) (Exam, error) {
	if _, err := svc.courses.GetCourse(ctx, tenantID, ne.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Exam{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: "course not found"})
		}
		return Exam{}, err
	}

	now := nowFunc().UTC()
	return svc.repo.CreateExam(ctx, Exam{
		TenantID:         tenantID,
		CourseID:         ne.CourseID,
		CreatedBy:        creatorID,
		Title:            ne.Title,
		Description:      ne.Description,
		TimeLimitMinutes: ne.TimeLimitMinutes,
		IsPublished:      ne.IsPublished,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (svc *service) GetExam(ctx context.Context, tenantID, id int64) (Exam, error) {
	return svc.repo.GetExam(ctx, tenantID, id)
}

func (svc *service) QueryExams(ctx context.Context, tenantID int64, filter *ExamFilter, opts core.ListOptions) ([]Exam, error) {
	return svc.repo.QueryExams(ctx, tenantID, filter, opts)
}

func (svc *service) UpdateExam(ctx context.Context, e Exam, ue UpdateExam) (Exam, error) {
	e.Title = ue.Title
	if ue.Description != nil {
		e.Description = core.CleanString(*ue.Description)
	}
	if ue.TimeLimitMinutes != nil {
		e.TimeLimitMinutes = *ue.TimeLimitMinutes
	}
	if ue.IsPublished != nil {
		e.IsPublished = *ue.IsPublished
	}
	e.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateExam(ctx, e)
}

func (svc *service) DeleteExam(ctx context.Context, e Exam) error {
	return svc.repo.DeleteExam(ctx, e.TenantID, e.ID)
}

func (svc *service) CreateQuestion(ctx context.Context, tenantID int64, nq NewQuestion) (Question, error) {
	if _, err := svc.repo.GetExam(ctx, tenantID, nq.ExamID); err != nil {
		if core.IsNotFound(err) {
			return Question{}, core.NewValidationError(err, core.FieldError{Field: "exam_id", Error: "exam not found"})
		}
		return Question{}, err
	}

	var pos int
	if nq.Position != nil {
		pos = *nq.Position
	} else {
		siblings, err := svc.repo.QueryQuestions(ctx, tenantID, &QuestionFilter{ExamID: nq.ExamID})
		if err != nil {
			return Question{}, err
		}
		pos = len(siblings) + 1
	}

	now := nowFunc().UTC()
	return svc.repo.CreateQuestion(ctx, Question{
		TenantID:  tenantID,
		ExamID:    nq.ExamID,
		Prompt:    nq.Prompt,
		Position:  pos,
		Points:    nq.Points,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) GetQuestion(ctx context.Context, tenantID, id int64) (Question, error) {
	return svc.repo.GetQuestion(ctx, tenantID, id)
}

func (svc *service) QueryQuestions(ctx context.Context, tenantID int64, filter *QuestionFilter) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, tenantID, filter)
}

func (svc *service) UpdateQuestion(ctx context.Context, q Question, uq UpdateQuestion) (Question, error) {
	q.Prompt = uq.Prompt
	if uq.Position != nil {
		q.Position = *uq.Position
	}
	if uq.Points != nil {
		q.Points = *uq.Points
	}
	q.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateQuestion(ctx, q)
}

func (svc *service) DeleteQuestion(ctx context.Context, q Question) error {
	return svc.repo.DeleteQuestion(ctx, q.TenantID, q.ID)
}

func (svc *service) SubmitAttempt(ctx context.Context, usr user.User, na NewAttempt) (Attempt, error) {
	e, err := svc.repo.GetExam(ctx, usr.TenantID, na.ExamID)
	if err != nil {
		if core.IsNotFound(err) {
			return Attempt{}, core.NewValidationError(err, core.FieldError{Field: "exam_id", Error: "exam not found"})
		}
		return Attempt{}, err
	}
	if !e.IsPublished {
		return Attempt{}, core.NewValidationError(ErrNotPublished, core.FieldError{Field: "exam_id", Error: ErrNotPublished.Error()})
	}

	questions, err := svc.repo.QueryQuestions(ctx, usr.TenantID, &QuestionFilter{ExamID: e.ID})
	if err != nil {
		return Attempt{}, err
	}
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[strconv.FormatInt(q.ID, 10)] = true
	}
	for qid := range na.Answers {
		if !known[qid] {
			return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "answers." + qid, Error: "question does not belong to this exam"})
		}
	}

	return svc.repo.CreateAttempt(ctx, Attempt{
		TenantID:    usr.TenantID,
		ExamID:      e.ID,
		UserID:      usr.ID,
		Answers:     na.Answers,
		SubmittedAt: nowFunc().UTC(),
	})
}

func (svc *service) GetAttempt(ctx context.Context, tenantID, id int64) (Attempt, error) {
	return svc.repo.GetAttempt(ctx, tenantID, id)
}

func (svc *service) QueryAttempts(ctx context.Context, tenantID int64, filter *AttemptFilter, opts core.ListOptions) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, tenantID, filter, opts)
}

func (svc *service) ReviewAttempt(ctx context.Context, reviewer user.User, a Attempt, r Review) (Attempt, error) {
	e, err := svc.repo.GetExam(ctx, a.TenantID, a.ExamID)
	if err != nil {
		return Attempt{}, err
	}

	if r.Score != nil {
		questions, err := svc.repo.QueryQuestions(ctx, a.TenantID, &QuestionFilter{ExamID: e.ID})
		if err != nil {
			return Attempt{}, err
		}
		var total int
		for _, q := range questions {
			total += q.Points
		}
		if *r.Score > total {
			return Attempt{}, core.NewValidationError(ErrScoreTooHigh, core.FieldError{Field: "score", Error: ErrScoreTooHigh.Error()})
		}
	}

	now := nowFunc().UTC()
	a.Feedback = r.Feedback
	a.Score = r.Score
	a.ReviewedAt = &now
	a.ReviewedBy = &reviewer.ID
	a, err = svc.repo.UpdateAttempt(ctx, a)
	if err != nil {
		return Attempt{}, err
	}

	student, err := svc.users.Get(ctx, a.TenantID, a.UserID)
	switch {
	case err != nil:
		svc.logger.Warn("could not notify reviewed attempt", err, map[string]interface{}{"attempt_id": a.ID})
	case student.Email != "":
		svc.async(func() { svc.sendReviewedMail(student, e, a) })
	}
	return a, nil
}

func (svc *service) sendReviewedMail(student user.User, e Exam, a Attempt) {
	data := map[string]interface{}{
		"Name":      student.Name,
		"ExamTitle": e.Title,
		"ExamID":    e.ID,
		"HasScore":  a.Score != nil,
		"Feedback":  a.Feedback,
	}
	if a.Score != nil {
		data["Score"] = *a.Score
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your exam attempt has been reviewed",
		TemplateName: "attempt_reviewed",
		TemplateData: data,
	})
}
