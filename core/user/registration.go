package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/portal/core/form"
)

// RegistrationForm is the three-step sign-up form.
type RegistrationForm struct {
	*form.Stepper
	Account *AccountStep
	Profile *ProfileStep
	Review  *ReviewStep
}

func NewRegistrationForm(validate *validator.Validate, translator ut.Translator) *RegistrationForm {
	f := &RegistrationForm{
		Account: new(AccountStep),
		Profile: new(ProfileStep),
		Review:  new(ReviewStep),
	}
	f.Stepper = form.NewStepper(
		validate, translator,
		form.NamedStep{Name: "Account", Step: f.Account},
		form.NamedStep{Name: "Profile", Step: f.Profile},
		form.NamedStep{Name: "Review", Step: f.Review},
	)
	return f
}

// Registration returns the body to post once every step is valid.
func (f *RegistrationForm) Registration() Registration {
	return NewRegistration(*f.Account, *f.Profile)
}
