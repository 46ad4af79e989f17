// Package forms binds and validates the HTML forms of the marketplace.
// Validation errors carry the message shown to the user.
package forms

import (
	"regexp"
	"strings"

	"github.com/jellydator/validation"
)

const (
	MsgAllFieldsRequired  = "All fields are required!"
	MsgPasswordMismatch   = "Passwords do not match!"
	MsgInvalidEmail       = "Invalid email format!"
	MsgBothFieldsRequired = "Both fields are required!"
	MsgProductRequired    = "All fields are required except comments."
)

// An address only has to contain an "@" and a "." somewhere.
var (
	hasAt  = regexp.MustCompile(`@`)
	hasDot = regexp.MustCompile(`\.`)
)

type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string, err error) error {
	return &Error{Message: msg, Err: err}
}

type SignupForm struct {
	Fullname   string `form:"fullname"`
	Username   string `form:"username"`
	Email      string `form:"email"`
	Password   string `form:"password"`
	RePassword string `form:"re_password"`
}

// Normalize trims every field except the passwords.
func (f *SignupForm) Normalize() {
	f.Fullname = strings.TrimSpace(f.Fullname)
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

func (f SignupForm) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Fullname, validation.Required),
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Email, validation.Required),
		validation.Field(&f.Password, validation.Required),
		validation.Field(&f.RePassword, validation.Required),
	); err != nil {
		return invalid(MsgAllFieldsRequired, err)
	}

	if f.Password != f.RePassword {
		return invalid(MsgPasswordMismatch, nil)
	}

	if err := validation.Validate(f.Email,
		validation.Match(hasAt),
		validation.Match(hasDot),
	); err != nil {
		return invalid(MsgInvalidEmail, err)
	}
	return nil
}

type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (f *LoginForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
}

func (f LoginForm) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Password, validation.Required),
	); err != nil {
		return invalid(MsgBothFieldsRequired, err)
	}
	return nil
}

// ProductForm is shared by add and update. The image travels separately.
type ProductForm struct {
	Category    string `form:"category"`
	Name        string `form:"product_name"`
	Description string `form:"description"`
	PriceRange  string `form:"price_range"`
	Comments    string `form:"comments"`
}

func (f *ProductForm) Normalize() {
	f.Category = strings.TrimSpace(f.Category)
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.PriceRange = strings.TrimSpace(f.PriceRange)
	f.Comments = strings.TrimSpace(f.Comments)
}

func (f ProductForm) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Category, validation.Required),
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Description, validation.Required),
		validation.Field(&f.PriceRange, validation.Required),
	); err != nil {
		return invalid(MsgProductRequired, err)
	}
	return nil
}
