// Form validation.
//
// Forms are plain structs with two tags per field:
//
//	Title string `form:"title" validate:"required,max=200"`
//
// "form" names the HTML input, so errors come back keyed the way the
// template looks them up ({{index .Errors "title"}}). "validate" holds
// go-playground/validator rules, plus two registered here:
//
//	imageext  the URL path ends in .jpg, .jpeg or .png (any case)
//	username  letters, digits, underscore and hyphen only

package service

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/bookmarks/internal/apperror"
)

// imageExtensions are the URL suffixes an image form accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FormErrors maps form field names to a message for that field.
// It matches apperror.ErrValidation with errors.Is.
//
// Handlers that render a form use errors.As to get the map and show each
// message under its input. Everything else sees a validation error and
// maps it to 400 like any other.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func (e FormErrors) Unwrap() error { return apperror.ErrValidation }

// newValidator builds the validator shared by all forms. Field errors are
// keyed by the struct's `form` tag so they line up with the HTML inputs.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("imageext", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		return imageExtensions[strings.ToLower(path.Ext(u.Path))]
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return v
}

// validateForm runs v over form and converts the result to FormErrors.
func validateForm(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("service: validating form: %w", err)
	}

	// validator reports every failed rule; keep the first per field.
	out := FormErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

// fieldMessage words a failed rule for the user. Only the first failing
// rule of a field is shown.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "url", "http_url":
		return "Enter a valid URL."
	case "email":
		return "Enter a valid email address."
	case "imageext":
		return "The given URL does not match valid image extensions."
	case "username":
		return "Use only letters, numbers, underscores and hyphens."
	default:
		return "Enter a valid value."
	}
}
