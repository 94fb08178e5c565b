package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/portal/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Instructor
	RoleInstructor = "instructor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles      = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	InstructorRoles = []string{RoleInstructor}
	StudentRoles    = []string{RoleStudent}

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Instructors: 20 - 11
		RoleInstructor: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Summary is the user row shown in admin lists.
type Summary struct {
	ID          string    `json:"userId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Roles       []string  `json:"roles"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s Summary) Key() string { return s.ID }

func (s Summary) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Me is the authenticated user as returned by `/users/me`.
type Me struct {
	ID        string   `json:"userId"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

func (m Me) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Me) RoleStartsWith(prefix string) bool {
	return RolesStartWith(m.Roles, prefix)
}

func (m Me) IsAdmin() bool      { return m.RoleStartsWith(RoleAdmin) }
func (m Me) IsInstructor() bool { return m.RoleStartsWith(RoleInstructor) }
func (m Me) IsStudent() bool    { return m.RoleStartsWith(RoleStudent) }

func RolesStartWith(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

// Filter narrows the admin user list; the zero value means "no filter".
type Filter struct {
	Role     string `query:"role" json:"role,omitempty"`
	IsActive string `query:"is_active" json:"isActive,omitempty"`
}

func (f Filter) IsEmpty() bool { return f.Role == "" && f.IsActive == "" }

func (f Filter) Values() map[string]string {
	vals := make(map[string]string, 2)
	if f.Role != "" {
		vals["role"] = f.Role
	}
	if f.IsActive != "" {
		vals["isActive"] = f.IsActive
	}
	return vals
}

// AccountStep is the first registration step.
type AccountStep struct {
	FirstName       string `json:"firstName" form:"firstName" validate:"required"`
	LastName        string `json:"lastName" form:"lastName" validate:"required"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (as *AccountStep) Clean() {
	as.FirstName = core.CleanString(as.FirstName)
	as.LastName = core.CleanString(as.LastName)
	as.Email = core.CleanString(as.Email, true /* lower */)
}

func (as *AccountStep) Validate(validate *validator.Validate) error {
	as.Clean()
	return validate.Struct(as)
}

// ProfileStep is the second registration step.
type ProfileStep struct {
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber" validate:"required,phone"`
	Address     string `json:"address" form:"address"`
	City        string `json:"city" form:"city" validate:"required_with=Address"`
	Zip         string `json:"zip" form:"zip" validate:"omitempty,numeric,len=5"`
}

func (ps *ProfileStep) Clean() {
	ps.PhoneNumber = core.CleanString(ps.PhoneNumber)
	ps.Address = core.CleanString(ps.Address)
	ps.City = core.CleanString(ps.City)
	ps.Zip = core.CleanString(ps.Zip)
}

func (ps *ProfileStep) Validate(validate *validator.Validate) error {
	ps.Clean()
	return validate.Struct(ps)
}

// ReviewStep asks the registrant to accept the terms before submitting.
type ReviewStep struct {
	AcceptTerms bool `json:"acceptTerms" form:"acceptTerms" validate:"eq=true"`
}

func (rs *ReviewStep) Validate(validate *validator.Validate) error {
	return validate.Struct(rs)
}

// Registration is the body posted to the backend once every step is valid.
type Registration struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Zip         string `json:"zip,omitempty"`
}

func NewRegistration(as AccountStep, ps ProfileStep) Registration {
	return Registration{
		FirstName:   as.FirstName,
		LastName:    as.LastName,
		Email:       as.Email,
		Password:    as.Password,
		PhoneNumber: ps.PhoneNumber,
		Address:     ps.Address,
		City:        ps.City,
		Zip:         ps.Zip,
	}
}
