package quiz

import "github.com/trezcool/darasa/core"

// Result is the outcome of a graded run.
type Result struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Submission holds a student's answers: question id -> option id.
type Submission struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// Grade replays a full run of p with the submitted answers and returns its result.
// onComplete is invoked once, when the run reaches the results.
func Grade(p Payload, answers map[string]string, onComplete CompletionFunc) (Result, error) {
	if p.Empty() {
		return Result{}, ErrNoQuestions
	}

	var flds []core.FieldError
	for _, q := range p.Questions {
		optID, ok := answers[q.ID]
		if !ok || optID == Unanswered {
			flds = append(flds, core.FieldError{Field: "answers." + q.ID, Error: "this question is unanswered"})
		} else if !q.hasOption(optID) {
			flds = append(flds, core.FieldError{Field: "answers." + q.ID, Error: ErrUnknownOption.Error()})
		}
	}
	if len(flds) > 0 {
		return Result{}, core.NewValidationError(nil, flds...)
	}

	sess := NewSession(p, onComplete)
	for i, q := range p.Questions {
		if err := sess.Select(i, answers[q.ID]); err != nil {
			return Result{}, err
		}
		sess.Advance()
	}

	return Result{Score: sess.Score(), Total: sess.Total(), Percentage: sess.Percentage()}, nil
}
