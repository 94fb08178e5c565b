package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
)

func newRegistrationForm() *RegistrationForm {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)
	SetCommonPasswords([]string{"Password1!"})
	return NewRegistrationForm(validate, translator)
}

func TestRegistrationForm_account(t *testing.T) {
	tests := []struct {
		name    string
		step    AccountStep
		wantErr map[string]string
	}{
		{
			name: "required",
			step: AccountStep{},
			wantErr: map[string]string{
				"firstName":       "this field is required",
				"lastName":        "this field is required",
				"email":           "this field is required",
				"password":        "this field is required",
				"passwordConfirm": "this field is required",
			},
		},
		{
			name:    "short password",
			step:    AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "Ab1!", PasswordConfirm: "Ab1!"},
			wantErr: map[string]string{"password": pwdMinLenText},
		},
		{
			name:    "no uppercase",
			step:    AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "password1!", PasswordConfirm: "password1!"},
			wantErr: map[string]string{"password": pwdComplexityText},
		},
		{
			name:    "common password",
			step:    AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "Password1!", PasswordConfirm: "Password1!"},
			wantErr: map[string]string{"password": pwdNoCommonText},
		},
		{
			name:    "all numeric",
			step:    AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "12345678", PasswordConfirm: "12345678"},
			wantErr: map[string]string{"password": pwdNotAllNumText},
		},
		{
			name: "mismatch",
			step: AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "K3ep!tSafe", PasswordConfirm: "K3ep!tSafe2"},
			wantErr: map[string]string{
				"passwordConfirm": "passwordConfirm must be equal to Password",
			},
		},
		{
			name: "valid",
			step: AccountStep{FirstName: " Ada ", LastName: "Byron", Email: "ADA@test.cd", Password: "K3ep!tSafe", PasswordConfirm: "K3ep!tSafe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationForm()
			*f.Account = tt.step
			err := f.Next()
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 1, f.Index())
				assert.Equal(t, "Ada", f.Account.FirstName)
				assert.Equal(t, "ada@test.cd", f.Account.Email)
				return
			}
			require.Error(t, err)
			for fld, msg := range tt.wantErr {
				assert.Equal(t, msg, f.Errors()[fld], fld)
			}
		})
	}
}

func TestRegistrationForm_submit(t *testing.T) {
	f := newRegistrationForm()
	*f.Account = AccountStep{FirstName: "Ada", LastName: "Byron", Email: "ada@test.cd", Password: "K3ep!tSafe", PasswordConfirm: "K3ep!tSafe"}
	*f.Profile = ProfileStep{PhoneNumber: "+243 810 000 000", Address: "1 Av. Kasa-Vubu"}

	var sent []Registration
	send := func() error { sent = append(sent, f.Registration()); return nil }

	require.Error(t, f.Submit(send))
	assert.Equal(t, 1, f.Index())
	assert.Equal(t, "this field is required", f.Errors()["city"])

	f.Profile.City = "Kinshasa"
	require.Error(t, f.Submit(send))
	assert.Equal(t, 2, f.Index(), "terms not accepted")

	f.Review.AcceptTerms = true
	require.NoError(t, f.Submit(send))
	require.Len(t, sent, 1)
	assert.Equal(t, "Kinshasa", sent[0].City)
	assert.Equal(t, "+243 810 000 000", sent[0].PhoneNumber)
}
