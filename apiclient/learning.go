package apiclient

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/quiz"
	"github.com/trezcool/darasa/core/tenant"
)

// CurrentTenant returns the tenant the client talks to.
func (c *Client) CurrentTenant(ctx context.Context) (tenant.Tenant, error) {
	var tnt tenant.Tenant
	err := c.getInto(ctx, "/api/tenant", &tnt)
	return tnt, err
}

// Quiz returns the quiz of a lesson without its answers, whoever asks. Administrators read them on the lesson.
// An undecodable quiz is returned as the empty payload.
func (c *Client) Quiz(ctx context.Context, lessonID int64) (quiz.Payload, error) {
	body, err := c.get(ctx, c.Lessons().itemKey(lessonID)+"/quiz")
	if err != nil {
		return quiz.Payload{}, err
	}
	return quiz.Decode(body), nil
}

// SubmitQuiz sends a finished run for grading. The enrollment progress moves server side,
// so the cached enrollments and dashboards are dropped.
func (c *Client) SubmitQuiz(ctx context.Context, lessonID int64, answers map[string]string) (quiz.Result, error) {
	var res quiz.Result
	_, err := c.send(ctx, http.MethodPost, c.Lessons().itemKey(lessonID)+"/quiz/submit", quiz.Submission{Answers: answers}, &res)
	if err != nil {
		return res, errors.Wrap(err, "submitting quiz")
	}
	c.cache.invalidatePrefix(PathEnrollments, PathActivityLogs, pathDashboards, pathAdmin, pathStudent)
	return res, nil
}

// CompleteLesson marks a lesson done and returns the refreshed enrollment.
func (c *Client) CompleteLesson(ctx context.Context, lessonID int64) (enrollment.Enrollment, error) {
	enrollments := c.Enrollments()
	var e enrollment.Enrollment
	body, err := c.send(ctx, http.MethodPost, c.Lessons().itemKey(lessonID)+"/complete", nil, &e)
	if err != nil {
		return e, errors.Wrap(err, "completing lesson")
	}
	enrollments.stored(body)
	c.cache.invalidatePrefix(PathActivityLogs)
	return e, nil
}

// QuizRun walks a student through a quiz locally. The answers are graded server side by Finish.
type QuizRun struct {
	*quiz.Session
	payload quiz.Payload
}

// StartQuiz fetches the quiz of a lesson and starts a run over it.
// An empty or undecodable quiz gives a run in the empty state.
func (c *Client) StartQuiz(ctx context.Context, lessonID int64) (*QuizRun, error) {
	p, err := c.Quiz(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return &QuizRun{Session: quiz.NewSession(p, nil), payload: p}, nil
}

// Submission maps the finalized answers to their question ids.
func (r *QuizRun) Submission() map[string]string {
	answers := r.Answers()
	sub := make(map[string]string, len(answers))
	for i, q := range r.payload.Questions {
		sub[q.ID] = answers[i]
	}
	return sub
}

// Finish submits a run that reached its results.
func (c *Client) Finish(ctx context.Context, lessonID int64, run *QuizRun) (quiz.Result, error) {
	if run.State() != quiz.StateResults {
		return quiz.Result{}, errors.New("quiz run is not finished")
	}
	return c.SubmitQuiz(ctx, lessonID, run.Submission())
}

// Dashboard returns the dashboard of the current user's portal.
func (c *Client) Dashboard(ctx context.Context) (dashboard.Dashboard, error) {
	var d dashboard.Dashboard
	err := c.getInto(ctx, pathDashboards, &d)
	return d, err
}

func (c *Client) AdminDashboard(ctx context.Context) (dashboard.AdminDashboard, error) {
	var d dashboard.AdminDashboard
	err := c.getInto(ctx, pathAdmin+"/dashboard", &d)
	return d, err
}

func (c *Client) StudentDashboard(ctx context.Context) (dashboard.StudentDashboard, error) {
	var d dashboard.StudentDashboard
	err := c.getInto(ctx, pathStudent+"/dashboard", &d)
	return d, err
}

// LessonAssetURL returns a short lived download URL of the lesson's file. It is never cached.
func (c *Client) LessonAssetURL(ctx context.Context, lessonID int64) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if _, err := c.send(ctx, http.MethodGet, c.Lessons().itemKey(lessonID)+"/asset", nil, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}
