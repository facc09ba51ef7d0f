package http

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"userauth/internal/password"
)

var registerOnce sync.Once

// registerValidators adds the custom binding tags used by request structs.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("username", validUsername)
		_ = v.RegisterValidation("password", validPassword)
	})
}

// validUsername allows 1-64 characters without whitespace or control runes.
func validUsername(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// validPassword allows at least 6 characters and at most password.MaxBytes bytes.
func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return utf8.RuneCountInString(s) >= 6 && len(s) <= password.MaxBytes
}

// validationMessage turns binding failures into the form messages users see.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return "Please fill in all fields"
	case "eqfield":
		return "Passwords don't match"
	case "password":
		return fmt.Sprintf("Password must be at least 6 characters and at most %d bytes", password.MaxBytes)
	case "email":
		return "Please enter a valid email"
	case "username":
		return "Username must be 1-64 characters without spaces"
	default:
		return field + " is invalid"
	}
}
