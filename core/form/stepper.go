// Package form implements multi-step forms: each step is validated on its
// own before the user may advance, and the whole form once more on submit.
package form

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
)

var (
	ErrInvalidStep = errors.New("step has errors")
	ErrNoSuchStep  = errors.New("no such step")
	ErrSubmitted   = errors.New("form already submitted")
)

// Step is one page of a multi-step form.
type Step interface {
	Validate(validate *validator.Validate) error
}

// NamedStep pairs a step with its title.
type NamedStep struct {
	Name string
	Step Step
}

// Stepper walks an ordered list of steps. It is not safe for concurrent use.
type Stepper struct {
	validate   *validator.Validate
	translator ut.Translator

	steps     []NamedStep
	current   int
	errors    map[int]map[string]string
	submitted bool
}

func NewStepper(validate *validator.Validate, translator ut.Translator, steps ...NamedStep) *Stepper {
	return &Stepper{
		validate:   validate,
		translator: translator,
		steps:      steps,
		errors:     make(map[int]map[string]string),
	}
}

func (s *Stepper) Len() int { return len(s.steps) }
func (s *Stepper) Index() int { return s.current }
func (s *Stepper) Current() NamedStep { return s.steps[s.current] }
func (s *Stepper) IsFirst() bool { return s.current == 0 }
func (s *Stepper) IsLast() bool { return s.current == len(s.steps)-1 }
func (s *Stepper) Submitted() bool { return s.submitted }

// Step returns the i-th step.
func (s *Stepper) Step(i int) (NamedStep, error) {
	if i < 0 || i >= len(s.steps) {
		return NamedStep{}, ErrNoSuchStep
	}
	return s.steps[i], nil
}

// Errors returns the field errors of the current step.
func (s *Stepper) Errors() map[string]string {
	return s.errors[s.current]
}

// HasErrors reports whether any step holds field errors; submit is disabled then.
func (s *Stepper) HasErrors() bool {
	for _, errs := range s.errors {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// Check validates the current step and records its field errors.
func (s *Stepper) Check() error {
	return s.check(s.current)
}

func (s *Stepper) check(i int) error {
	err := s.steps[i].Step.Validate(s.validate)
	if err == nil {
		delete(s.errors, i)
		return nil
	}
	flds := core.FieldErrors(err, s.translator)
	if flds == nil {
		// not a field error
		return err
	}
	s.errors[i] = flds
	return errors.Wrap(ErrInvalidStep, s.steps[i].Name)
}

// Next validates the current step and advances past it.
func (s *Stepper) Next() error {
	if s.submitted {
		return ErrSubmitted
	}
	if err := s.Check(); err != nil {
		return err
	}
	if !s.IsLast() {
		s.current++
	}
	return nil
}

// Back returns to the previous step without validating.
func (s *Stepper) Back() {
	if s.current > 0 {
		s.current--
	}
}

// Submit validates every step, moving to the first invalid one, and calls
// send once all steps are clean. send is never called while errors remain.
func (s *Stepper) Submit(send func() error) error {
	if s.submitted {
		return ErrSubmitted
	}
	for i := range s.steps {
		if err := s.check(i); err != nil {
			s.current = i
			return err
		}
	}
	if err := send(); err != nil {
		return err
	}
	s.submitted = true
	return nil
}
