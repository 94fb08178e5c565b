// Package quiz implements the live quiz and survey taking flow:
// not-started -> in-progress -> submitted.
package quiz

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
)

type Kind string

const (
	KindSingle   Kind = "single"
	KindMultiple Kind = "multiple"
	KindText     Kind = "text"
)

type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateSubmitted:
		return "submitted"
	default:
		return "not-started"
	}
}

var (
	ErrNotInProgress   = errors.New("quiz is not in progress")
	ErrSubmitted       = errors.New("quiz already submitted")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrNoCredentials   = errors.New("a session or a one-time token is required")
)

type (
	Choice struct {
		ID    string `json:"choiceId"`
		Label string `json:"label"`
	}

	Question struct {
		ID       string   `json:"questionId"`
		Prompt   string   `json:"prompt"`
		Kind     Kind     `json:"kind"`
		Required bool     `json:"required"`
		Choices  []Choice `json:"choices"`
	}

	Quiz struct {
		ID        string     `json:"quizId"`
		Title     string     `json:"title"`
		IsSurvey  bool       `json:"isSurvey"`
		Questions []Question `json:"questions"`
	}

	Answer struct {
		QuestionID string   `json:"questionId"`
		Choices    []string `json:"choices,omitempty"`
		Text       string   `json:"text,omitempty"`
	}

	// Result is the backend's grading; surveys are not graded.
	Result struct {
		Score    int  `json:"score"`
		MaxScore int  `json:"maxScore"`
		Passed   bool `json:"passed"`
	}

	// Credentials authenticate an attempt: a session token or a one-time token (OTT)
	// from an emailed link.
	Credentials struct {
		Token string
		OTT   string
	}

	Backend interface {
		StartQuiz(ctx context.Context, quizID string, cred Credentials) (Quiz, error)
		SubmitQuiz(ctx context.Context, quizID string, cred Credentials, answers []Answer) (Result, error)
	}
)

// Attempt is one user taking one quiz. It is safe for concurrent use.
type Attempt struct {
	backend Backend
	quizID  string
	cred    Credentials

	mu      sync.Mutex
	state   State
	quiz    Quiz
	answers map[string]Answer
	result  *Result
}

func NewAttempt(backend Backend, quizID string, cred Credentials) *Attempt {
	return &Attempt{backend: backend, quizID: quizID, cred: cred, answers: make(map[string]Answer)}
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Quiz() Quiz {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quiz
}

// Answers returns the recorded answers in question order.
func (a *Attempt) Answers() []Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ordered()
}

func (a *Attempt) Result() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return Result{}, false
	}
	return *a.result, true
}

// Start loads the questions. Starting an attempt in progress is a no-op.
func (a *Attempt) Start(ctx context.Context) error {
	if a.cred.Token == "" && a.cred.OTT == "" {
		return ErrNoCredentials
	}
	a.mu.Lock()
	switch a.state {
	case StateInProgress:
		a.mu.Unlock()
		return nil
	case StateSubmitted:
		a.mu.Unlock()
		return ErrSubmitted
	}
	a.mu.Unlock()

	q, err := a.backend.StartQuiz(ctx, a.quizID, a.cred)
	if err != nil {
		return errors.Wrap(err, "starting quiz")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateNotStarted {
		a.quiz = q
		a.state = StateInProgress
	}
	return nil
}

// Answer records the answer to a question, replacing any previous one.
// An empty answer clears it.
func (a *Attempt) Answer(questionID string, choices []string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateNotStarted:
		return ErrNotInProgress
	case StateSubmitted:
		return ErrSubmitted
	}

	q, ok := a.question(questionID)
	if !ok {
		return errors.Wrap(ErrUnknownQuestion, questionID)
	}
	text = strings.TrimSpace(text)
	if len(choices) == 0 && text == "" {
		delete(a.answers, questionID)
		return nil
	}

	switch q.Kind {
	case KindText:
		if len(choices) > 0 {
			return errors.Wrap(ErrInvalidChoice, "text question")
		}
	case KindSingle, KindMultiple:
		if text != "" {
			return errors.Wrap(ErrInvalidChoice, "choice question")
		}
		if q.Kind == KindSingle && len(choices) > 1 {
			return errors.Wrap(ErrInvalidChoice, "only one choice is allowed")
		}
		seen := make(map[string]bool, len(choices))
		for _, c := range choices {
			if seen[c] || !hasChoice(q, c) {
				return errors.Wrap(ErrInvalidChoice, c)
			}
			seen[c] = true
		}
	}
	a.answers[questionID] = Answer{QuestionID: questionID, Choices: append([]string(nil), choices...), Text: text}
	return nil
}

// Missing lists the required questions left unanswered.
func (a *Attempt) Missing() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.missing()
}

// Submit posts the answers once every required question is answered.
func (a *Attempt) Submit(ctx context.Context) (Result, error) {
	a.mu.Lock()
	switch a.state {
	case StateNotStarted:
		a.mu.Unlock()
		return Result{}, ErrNotInProgress
	case StateSubmitted:
		a.mu.Unlock()
		return Result{}, ErrSubmitted
	}
	if missing := a.missing(); len(missing) > 0 {
		a.mu.Unlock()
		flds := make([]core.FieldError, 0, len(missing))
		for _, id := range missing {
			flds = append(flds, core.FieldError{Field: id, Error: "this question is required"})
		}
		return Result{}, core.NewValidationError(nil, flds...)
	}
	answers := a.ordered()
	// block concurrent submits while the request is in flight
	a.state = StateSubmitted
	a.mu.Unlock()

	res, err := a.backend.SubmitQuiz(ctx, a.quizID, a.cred, answers)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = StateInProgress
		return Result{}, errors.Wrap(err, "submitting quiz")
	}
	a.result = &res
	return res, nil
}

func (a *Attempt) question(id string) (Question, bool) {
	for _, q := range a.quiz.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (a *Attempt) missing() []string {
	var missing []string
	for _, q := range a.quiz.Questions {
		if _, ok := a.answers[q.ID]; q.Required && !ok {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

func (a *Attempt) ordered() []Answer {
	answers := make([]Answer, 0, len(a.answers))
	for _, q := range a.quiz.Questions {
		if ans, ok := a.answers[q.ID]; ok {
			answers = append(answers, ans)
		}
	}
	return answers
}

func hasChoice(q Question, id string) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
