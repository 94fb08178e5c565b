package echoweb

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/quiz"
	"github.com/trezcool/masomo/portal/core/session"
)

// Quizzes are taken either by a logged-in user or through an emailed link
// carrying a one-time token (?ott=).
func registerQuiz(s *Server, g *echo.Group) {
	g.GET("/:id", s.quizPage)
	g.POST("/:id/answer", s.answerQuestion)
	g.POST("/:id/submit", s.submitQuiz)
}

type quizData struct {
	Quiz     quiz.Quiz
	OTT      string
	Answers  map[string]quiz.Answer
	Missing  map[string]bool
	Result   *quiz.Result
	Finished bool
}

// credentials returns the credentials of the request and the workspace key they map to.
func credentials(ctx echo.Context) (quiz.Credentials, string, error) {
	if ott := ctx.FormValue("ott"); ott != "" {
		return quiz.Credentials{OTT: ott}, "ott:" + ott, nil
	}
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		return quiz.Credentials{Token: sess.Token}, sess.Token, nil
	}
	return quiz.Credentials{}, "", quiz.ErrNoCredentials
}

func (s *Server) attempt(ctx echo.Context) (*quiz.Attempt, quiz.Credentials, error) {
	cred, key, err := credentials(ctx)
	if err != nil {
		return nil, cred, err
	}
	id := ctx.Param("id")
	a := s.spaces.get(key).attempt(id, func() *quiz.Attempt {
		return quiz.NewAttempt(s.Backend, id, cred)
	})
	return a, cred, nil
}

func (s *Server) renderQuiz(ctx echo.Context, code int, a *quiz.Attempt, cred quiz.Credentials, fields map[string]string) error {
	data := quizData{
		Quiz:    a.Quiz(),
		OTT:     cred.OTT,
		Answers: make(map[string]quiz.Answer),
		Missing: make(map[string]bool),
	}
	for _, ans := range a.Answers() {
		data.Answers[ans.QuestionID] = ans
	}
	for id := range fields {
		data.Missing[id] = true
	}
	if res, ok := a.Result(); ok {
		data.Result = &res
		data.Finished = true
	}
	if isXHR(ctx) {
		return ctx.JSON(code, echo.Map{
			"state":   a.State().String(),
			"quiz":    data.Quiz,
			"answers": a.Answers(),
			"result":  data.Result,
			"fields":  fields,
		})
	}
	p := newPage(ctx, data.Quiz.Title, data)
	p.Fields = fields
	return ctx.Render(code, "quiz", p)
}

// quizPage starts the attempt on first visit and shows the questions, or the
// result once submitted.
func (s *Server) quizPage(ctx echo.Context) error {
	a, cred, err := s.attempt(ctx)
	if err != nil {
		return err
	}
	if a.State() != quiz.StateSubmitted {
		if err = a.Start(ctx.Request().Context()); err != nil {
			return err
		}
	}
	return s.renderQuiz(ctx, http.StatusOK, a, cred, nil)
}

func (s *Server) answerQuestion(ctx echo.Context) error {
	a, cred, err := s.attempt(ctx)
	if err != nil {
		return err
	}
	form, err := ctx.FormParams()
	if err != nil {
		return errors.Wrap(err, "parsing answer")
	}
	if err = a.Answer(form.Get("questionId"), form["choices"], form.Get("text")); err != nil {
		return err
	}
	if isXHR(ctx) {
		return s.renderQuiz(ctx, http.StatusOK, a, cred, nil)
	}
	return ctx.Redirect(http.StatusSeeOther, quizPath(ctx.Param("id"), cred))
}

func (s *Server) submitQuiz(ctx echo.Context) error {
	a, cred, err := s.attempt(ctx)
	if err != nil {
		return err
	}
	_, err = a.Submit(ctx.Request().Context())
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return s.renderQuiz(ctx, http.StatusBadRequest, a, cred, fieldMap(vErr))
	}
	if err != nil {
		return err
	}
	return s.renderQuiz(ctx, http.StatusOK, a, cred, nil)
}

func quizPath(id string, cred quiz.Credentials) string {
	path := "/quiz/" + url.PathEscape(id)
	if cred.OTT != "" {
		path += "?ott=" + url.QueryEscape(cred.OTT)
	}
	return path
}
