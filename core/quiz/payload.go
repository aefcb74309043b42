// Package quiz implements the quiz lesson payload and the grading state machine that walks a
// student through its questions.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var errMalformed = errors.New("malformed quiz payload")

type (
	Option struct {
		ID        string `json:"id"`
		Label     string `json:"label"`
		IsCorrect bool   `json:"is_correct,omitempty"`
	}

	Question struct {
		ID      string   `json:"id"`
		Prompt  string   `json:"prompt"`
		Options []Option `json:"options"`
	}

	// Payload is the structured quiz content embedded in a quiz lesson.
	Payload struct {
		Questions []Question `json:"questions"`
	}
)

// Empty reports whether the payload has no question to present.
func (p Payload) Empty() bool { return len(p.Questions) == 0 }

// Total is the number of questions.
func (p Payload) Total() int { return len(p.Questions) }

// Public returns a copy of the payload without the correctness flags, fit for students.
func (p Payload) Public() Payload {
	pub := Payload{Questions: make([]Question, 0, len(p.Questions))}
	for _, q := range p.Questions {
		opts := make([]Option, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, Option{ID: o.ID, Label: o.Label})
		}
		pub.Questions = append(pub.Questions, Question{ID: q.ID, Prompt: q.Prompt, Options: opts})
	}
	return pub
}

// CorrectOption returns the option flagged as correct, if any.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return Option{}, false
}

func (q Question) hasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Parse decodes raw into a Payload. raw is either the JSON object itself or a JSON string
// holding the encoded object.
func Parse(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Payload{}, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Payload{}, errors.Wrap(errMalformed, err.Error())
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return Payload{}, nil
		}
		if raw[0] != '{' {
			return Payload{}, errMalformed
		}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, errors.Wrap(errMalformed, err.Error())
	}
	return p, nil
}

// Decode is Parse that fails closed: anything undecodable becomes the empty payload.
func Decode(raw []byte) Payload {
	p, err := Parse(raw)
	if err != nil {
		return Payload{}
	}
	return p
}

// Validate checks the authoring rules of a payload: at least one question, each with a prompt,
// at least 2 options with unique ids and exactly one correct option.
func (p Payload) Validate() error {
	if p.Empty() {
		return core.NewValidationError(nil, core.FieldError{Field: "quiz", Error: "a quiz must have at least one question"})
	}

	var flds []core.FieldError
	qIDs := make(map[string]struct{}, len(p.Questions))
	for i, q := range p.Questions {
		field := fmt.Sprintf("quiz.questions[%d]", i)
		if q.ID == "" {
			flds = append(flds, core.FieldError{Field: field + ".id", Error: "this field is required"})
		} else if _, dup := qIDs[q.ID]; dup {
			flds = append(flds, core.FieldError{Field: field + ".id", Error: "duplicate question id"})
		}
		qIDs[q.ID] = struct{}{}

		if core.CleanString(q.Prompt) == "" {
			flds = append(flds, core.FieldError{Field: field + ".prompt", Error: "this field is required"})
		}
		if len(q.Options) < 2 {
			flds = append(flds, core.FieldError{Field: field + ".options", Error: "a question must have at least 2 options"})
			continue
		}

		var correct int
		oIDs := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if o.ID == Unanswered {
				flds = append(flds, core.FieldError{Field: field + ".options", Error: "option ids are required"})
				break
			}
			if _, dup := oIDs[o.ID]; dup {
				flds = append(flds, core.FieldError{Field: field + ".options", Error: "duplicate option id " + o.ID})
				break
			}
			oIDs[o.ID] = struct{}{}
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			flds = append(flds, core.FieldError{Field: field + ".options", Error: "exactly one option must be marked correct"})
		}
	}

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
