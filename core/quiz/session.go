package quiz

import (
	"errors"
	"fmt"
)

// Unanswered marks a question with no selected option.
const Unanswered = ""

var (
	ErrNotAnswering       = errors.New("quiz is not being answered")
	ErrNotCurrentQuestion = errors.New("only the current question can be answered")
	ErrUnknownOption      = errors.New("unknown option")
	ErrNoQuestions        = errors.New("no questions available")
)

type State int

const (
	// StateEmpty is the terminal state of a quiz without questions.
	StateEmpty State = iota
	StateAnswering
	StateResults
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAnswering:
		return "answering"
	case StateResults:
		return "results"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CompletionFunc receives the score and the number of questions of a finished run.
type CompletionFunc func(score, total int)

// Session walks a student through the questions of a Payload one at a time.
// A Session is not safe for concurrent use.
type Session struct {
	questions  []Question
	onComplete CompletionFunc

	index       int
	selections  []string // one slot per question
	answers     []string // finalized selections, one slot per question
	showResults bool
	score       int
}

// NewSession starts a run over p. onComplete may be nil.
func NewSession(p Payload, onComplete CompletionFunc) *Session {
	s := &Session{questions: p.Questions, onComplete: onComplete}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.index = 0
	s.selections = make([]string, len(s.questions))
	s.answers = make([]string, len(s.questions))
	s.showResults = false
	s.score = 0
}

func (s *Session) State() State {
	switch {
	case len(s.questions) == 0:
		return StateEmpty
	case s.showResults:
		return StateResults
	default:
		return StateAnswering
	}
}

func (s *Session) Index() int { return s.index }

func (s *Session) Total() int { return len(s.questions) }

func (s *Session) Score() int { return s.score }

// Current returns the question being answered.
func (s *Session) Current() (Question, bool) {
	if s.State() != StateAnswering {
		return Question{}, false
	}
	return s.questions[s.index], true
}

// Selection returns the option selected for question i, or Unanswered.
func (s *Session) Selection(i int) string {
	if i < 0 || i >= len(s.selections) {
		return Unanswered
	}
	return s.selections[i]
}

// Answers returns a copy of the finalized answers.
func (s *Session) Answers() []string {
	answers := make([]string, len(s.answers))
	copy(answers, s.answers)
	return answers
}

// Select records optionID for the current question. It never advances.
func (s *Session) Select(questionIndex int, optionID string) error {
	if s.State() != StateAnswering {
		return ErrNotAnswering
	}
	if questionIndex != s.index {
		return ErrNotCurrentQuestion
	}
	if !s.questions[s.index].hasOption(optionID) {
		return ErrUnknownOption
	}
	s.selections[s.index] = optionID
	return nil
}

// Advance finalizes the current answer and moves to the next question, or to the results after
// the last one. It reports whether anything happened: an unanswered current question blocks it.
func (s *Session) Advance() bool {
	if s.State() != StateAnswering || s.selections[s.index] == Unanswered {
		return false
	}

	s.answers[s.index] = s.selections[s.index]
	if s.index < len(s.questions)-1 {
		s.index++
		return true
	}

	s.score = s.computeScore()
	s.showResults = true
	if s.onComplete != nil {
		s.onComplete(s.score, len(s.questions))
	}
	return true
}

// Retreat goes back one question, keeping every answer.
func (s *Session) Retreat() bool {
	if s.State() != StateAnswering || s.index == 0 {
		return false
	}
	s.index--
	return true
}

// Retry restarts the run from the first question with no answers.
func (s *Session) Retry() {
	s.reset()
}

// Percentage is score/total*100, or 0 when there is no question.
func (s *Session) Percentage() float64 {
	return percentage(s.score, len(s.questions))
}

func (s *Session) computeScore() int {
	var score int
	for i, q := range s.questions {
		if correct, ok := q.CorrectOption(); ok && s.selections[i] == correct.ID {
			score++
		}
	}
	return score
}

func percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}
