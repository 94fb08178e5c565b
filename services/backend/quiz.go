package backend

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/portal/core/quiz"
)

var _ quiz.Backend = (*Client)(nil)

func (c *Client) as(cred quiz.Credentials) *Client {
	if cred.OTT != "" {
		return c.WithOTT(cred.OTT)
	}
	return c.WithToken(cred.Token)
}

func (c *Client) StartQuiz(ctx context.Context, quizID string, cred quiz.Credentials) (quiz.Quiz, error) {
	var q quiz.Quiz
	err := c.as(cred).do(ctx, call{
		endpoint: "quizzes.start",
		method:   rest.Post,
		path:     "/quizzes/" + url.PathEscape(quizID) + "/start",
	}, &q)
	return q, err
}

func (c *Client) SubmitQuiz(ctx context.Context, quizID string, cred quiz.Credentials, answers []quiz.Answer) (quiz.Result, error) {
	var res quiz.Result
	err := c.as(cred).do(ctx, call{
		endpoint: "quizzes.submit",
		method:   rest.Post,
		path:     "/quizzes/" + url.PathEscape(quizID) + "/submit",
		body:     struct {
			Answers []quiz.Answer `json:"answers"`
		}{Answers: answers},
	}, &res)
	return res, err
}
