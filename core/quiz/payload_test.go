package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestDecode(t *testing.T) {
	obj, err := json.Marshal(twoQuestions())
	require.NoError(t, err)
	str, err := json.Marshal(string(obj))
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     []byte
		want    Payload
		wantErr bool
	}{
		{name: "object", raw: obj, want: twoQuestions()},
		{name: "encoded string", raw: str, want: twoQuestions()},
		{name: "padded object", raw: append(append([]byte("  \n"), obj...), ' '), want: twoQuestions()},
		{name: "nil", raw: nil},
		{name: "null", raw: []byte("null")},
		{name: "empty string", raw: []byte(`""`)},
		{name: "no questions", raw: []byte(`{"questions":[]}`), want: Payload{Questions: []Question{}}},
		{name: "malformed object", raw: []byte(`{"questions":[{"id":1}]}`), wantErr: true},
		{name: "truncated", raw: obj[:len(obj)/2], wantErr: true},
		{name: "string of garbage", raw: []byte(`"lol"`), wantErr: true},
		{name: "broken string", raw: []byte(`"{\"questions\":`), wantErr: true},
		{name: "array", raw: []byte(`[1,2]`), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, Decode(tt.raw).Empty(), "Decode() must fail closed")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, Decode(tt.raw))
		})
	}
}

func TestPayload_Public(t *testing.T) {
	p := twoQuestions()
	pub := p.Public()

	require.Len(t, pub.Questions, 2)
	for i, q := range pub.Questions {
		assert.Equal(t, p.Questions[i].ID, q.ID)
		assert.Equal(t, p.Questions[i].Prompt, q.Prompt)
		for j, o := range q.Options {
			assert.Equal(t, p.Questions[i].Options[j].Label, o.Label)
			assert.False(t, o.IsCorrect)
		}
	}
	// the original is untouched
	_, ok := p.Questions[0].CorrectOption()
	assert.True(t, ok)

	data, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "is_correct")
}

func TestPayload_Validate(t *testing.T) {
	opts := func(correct ...bool) []Option {
		o := make([]Option, 0, len(correct))
		for i, c := range correct {
			o = append(o, Option{ID: string(rune('a' + i)), Label: "x", IsCorrect: c})
		}
		return o
	}

	tests := []struct {
		name       string
		p          Payload
		wantFields []string
	}{
		{name: "valid", p: twoQuestions()},
		{name: "no questions", p: Payload{}, wantFields: []string{"quiz"}},
		{
			name:       "missing ids and prompt",
			p:          Payload{Questions: []Question{{Options: opts(true, false)}}},
			wantFields: []string{"quiz.questions[0].id", "quiz.questions[0].prompt"},
		},
		{
			name: "duplicate question ids",
			p: Payload{Questions: []Question{
				{ID: "q", Prompt: "1", Options: opts(true, false)},
				{ID: "q", Prompt: "2", Options: opts(false, true)},
			}},
			wantFields: []string{"quiz.questions[1].id"},
		},
		{
			name:       "single option",
			p:          Payload{Questions: []Question{{ID: "q", Prompt: "1", Options: opts(true)}}},
			wantFields: []string{"quiz.questions[0].options"},
		},
		{
			name:       "no correct option",
			p:          Payload{Questions: []Question{{ID: "q", Prompt: "1", Options: opts(false, false)}}},
			wantFields: []string{"quiz.questions[0].options"},
		},
		{
			name:       "two correct options",
			p:          Payload{Questions: []Question{{ID: "q", Prompt: "1", Options: opts(true, true, false)}}},
			wantFields: []string{"quiz.questions[0].options"},
		},
		{
			name: "duplicate option ids",
			p: Payload{Questions: []Question{{ID: "q", Prompt: "1", Options: []Option{
				{ID: "a", Label: "1", IsCorrect: true}, {ID: "a", Label: "2"},
			}}}},
			wantFields: []string{"quiz.questions[0].options"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want *core.ValidationError, got %T", err)
			got := make([]string, 0, len(vErr.Fields))
			for _, f := range vErr.Fields {
				got = append(got, f.Field)
			}
			for _, f := range tt.wantFields {
				assert.Contains(t, got, f)
			}
		})
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		p       Payload
		answers map[string]string
		want    Result
		wantErr bool
	}{
		{name: "no questions", p: Payload{}, answers: map[string]string{}, wantErr: true},
		{name: "unanswered question", p: twoQuestions(), answers: map[string]string{"q1": "b"}, wantErr: true},
		{name: "unknown option", p: twoQuestions(), answers: map[string]string{"q1": "b", "q2": "z"}, wantErr: true},
		{name: "half right", p: twoQuestions(), answers: map[string]string{"q1": "b", "q2": "c"}, want: Result{Score: 1, Total: 2, Percentage: 50}},
		{name: "all right", p: twoQuestions(), answers: map[string]string{"q1": "b", "q2": "a"}, want: Result{Score: 2, Total: 2, Percentage: 100}},
		{name: "all wrong", p: twoQuestions(), answers: map[string]string{"q1": "a", "q2": "b"}, want: Result{Score: 0, Total: 2, Percentage: 0}},
		{
			name: "extra answers are ignored", p: twoQuestions(),
			answers: map[string]string{"q1": "b", "q2": "a", "q3": "a"}, want: Result{Score: 2, Total: 2, Percentage: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var done completion
			got, err := Grade(tt.p, tt.answers, done.record)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Zero(t, done.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, completion{calls: 1, score: tt.want.Score, total: tt.want.Total}, done)
		})
	}
}
