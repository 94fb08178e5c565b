package form

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
)

type nameStep struct {
	Name string `json:"name" validate:"required"`
}

func (s *nameStep) Validate(validate *validator.Validate) error { return validate.Struct(s) }

type ageStep struct {
	Age int `json:"age" validate:"gte=18"`
}

func (s *ageStep) Validate(validate *validator.Validate) error { return validate.Struct(s) }

type brokenStep struct{}

func (brokenStep) Validate(*validator.Validate) error { return errors.New("boom") }

func newTestStepper() (*Stepper, *nameStep, *ageStep) {
	validate, translator := core.NewValidator()
	name, age := new(nameStep), new(ageStep)
	return NewStepper(validate, translator, NamedStep{Name: "Name", Step: name}, NamedStep{Name: "Age", Step: age}), name, age
}

func TestStepper_Next(t *testing.T) {
	s, name, _ := newTestStepper()
	assert.True(t, s.IsFirst())

	err := s.Next()
	assert.Equal(t, ErrInvalidStep, errors.Cause(err))
	assert.Equal(t, map[string]string{"name": "this field is required"}, s.Errors())
	assert.True(t, s.HasErrors())
	assert.Equal(t, 0, s.Index())

	name.Name = "Ada"
	require.NoError(t, s.Next())
	assert.Equal(t, 1, s.Index())
	assert.True(t, s.IsLast())
	assert.False(t, s.HasErrors())
	assert.Empty(t, s.Errors())

	s.Back()
	s.Back()
	assert.Equal(t, 0, s.Index())
}

func TestStepper_Submit(t *testing.T) {
	s, name, age := newTestStepper()
	var sent int
	send := func() error { sent++; return nil }

	name.Name = "Ada"
	require.NoError(t, s.Next())

	// back never validates, submit checks every step
	s.Back()
	name.Name = ""
	age.Age = 12
	err := s.Submit(send)
	require.Error(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 0, s.Index(), "moves to the first invalid step")

	name.Name = "Ada"
	err = s.Submit(send)
	require.Error(t, err)
	assert.Equal(t, 1, s.Index())
	assert.Contains(t, s.Errors(), "age")
	assert.Zero(t, sent)

	age.Age = 30
	require.NoError(t, s.Submit(send))
	assert.Equal(t, 1, sent)
	assert.True(t, s.Submitted())
	assert.Equal(t, ErrSubmitted, s.Submit(send))
	assert.Equal(t, ErrSubmitted, s.Next())
}

func TestStepper_sendFailure(t *testing.T) {
	s, name, age := newTestStepper()
	name.Name, age.Age = "Ada", 30

	assert.EqualError(t, s.Submit(func() error { return errors.New("backend down") }), "backend down")
	assert.False(t, s.Submitted())
	require.NoError(t, s.Submit(func() error { return nil }))
}

func TestStepper_nonFieldError(t *testing.T) {
	validate, translator := core.NewValidator()
	s := NewStepper(validate, translator, NamedStep{Name: "Broken", Step: brokenStep{}})
	assert.EqualError(t, s.Next(), "boom")
	assert.False(t, s.HasErrors())

	_, err := s.Step(3)
	assert.Equal(t, ErrNoSuchStep, err)
}
