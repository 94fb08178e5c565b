package quiz

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
)

type fakeBackend struct {
	mu        sync.Mutex
	starts    []Credentials
	submitted [][]Answer
	submitErr error
}

func (b *fakeBackend) StartQuiz(_ context.Context, quizID string, cred Credentials) (Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts = append(b.starts, cred)
	return Quiz{
		ID:    quizID,
		Title: "Week 1",
		Questions: []Question{
			{ID: "q1", Kind: KindSingle, Required: true, Choices: []Choice{{ID: "a"}, {ID: "b"}}},
			{ID: "q2", Kind: KindMultiple, Choices: []Choice{{ID: "x"}, {ID: "y"}, {ID: "z"}}},
			{ID: "q3", Kind: KindText, Required: true},
		},
	}, nil
}

func (b *fakeBackend) SubmitQuiz(_ context.Context, _ string, _ Credentials, answers []Answer) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return Result{}, b.submitErr
	}
	b.submitted = append(b.submitted, answers)
	return Result{Score: 2, MaxScore: 3, Passed: true}, nil
}

func TestAttempt(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	a := NewAttempt(backend, "quiz1", Credentials{OTT: "ott-123"})

	assert.Equal(t, ErrNotInProgress, a.Answer("q1", []string{"a"}, ""))

	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Start(ctx))
	assert.Len(t, backend.starts, 1)
	assert.Equal(t, StateInProgress, a.State())
	assert.Equal(t, []string{"q1", "q3"}, a.Missing())

	tests := []struct {
		name    string
		qid     string
		choices []string
		text    string
		wantErr error
	}{
		{name: "unknown question", qid: "q9", choices: []string{"a"}, wantErr: ErrUnknownQuestion},
		{name: "unknown choice", qid: "q1", choices: []string{"c"}, wantErr: ErrInvalidChoice},
		{name: "two choices on single", qid: "q1", choices: []string{"a", "b"}, wantErr: ErrInvalidChoice},
		{name: "duplicate choice", qid: "q2", choices: []string{"x", "x"}, wantErr: ErrInvalidChoice},
		{name: "text on choice question", qid: "q2", text: "hello", wantErr: ErrInvalidChoice},
		{name: "choices on text question", qid: "q3", choices: []string{"a"}, wantErr: ErrInvalidChoice},
		{name: "single", qid: "q1", choices: []string{"b"}},
		{name: "multiple", qid: "q2", choices: []string{"z", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Answer(tt.qid, tt.choices, tt.text)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	_, err := a.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"q3": "this question is required"}, core.FieldErrors(err, nil))
	assert.Empty(t, backend.submitted)

	require.NoError(t, a.Answer("q3", nil, "  Because.  "))
	res, err := a.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	require.Len(t, backend.submitted, 1)
	assert.Equal(t, []Answer{
		{QuestionID: "q1", Choices: []string{"b"}},
		{QuestionID: "q2", Choices: []string{"z", "x"}},
		{QuestionID: "q3", Text: "Because."},
	}, backend.submitted[0])

	_, err = a.Submit(ctx)
	assert.Equal(t, ErrSubmitted, err)
	assert.Equal(t, ErrSubmitted, a.Answer("q1", []string{"a"}, ""))
	got, ok := a.Result()
	assert.True(t, ok)
	assert.Equal(t, res, got)
}

func TestAttempt_clearAnswer(t *testing.T) {
	ctx := context.Background()
	a := NewAttempt(&fakeBackend{}, "quiz1", Credentials{Token: "t"})
	require.NoError(t, a.Start(ctx))

	require.NoError(t, a.Answer("q1", []string{"a"}, ""))
	assert.Equal(t, []string{"q3"}, a.Missing())
	require.NoError(t, a.Answer("q1", nil, " "))
	assert.Equal(t, []string{"q1", "q3"}, a.Missing())
}

func TestAttempt_submitFailure(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{submitErr: errors.New("backend down")}
	a := NewAttempt(backend, "quiz1", Credentials{Token: "t"})
	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Answer("q1", []string{"a"}, ""))
	require.NoError(t, a.Answer("q3", nil, "ok"))

	_, err := a.Submit(ctx)
	assert.EqualError(t, err, "submitting quiz: backend down")
	assert.Equal(t, StateInProgress, a.State(), "answers are kept for a manual retry")
	assert.Len(t, a.Answers(), 2)

	backend.submitErr = nil
	_, err = a.Submit(ctx)
	assert.NoError(t, err)
}

func TestAttempt_noCredentials(t *testing.T) {
	a := NewAttempt(&fakeBackend{}, "quiz1", Credentials{})
	assert.Equal(t, ErrNoCredentials, a.Start(context.Background()))
}
