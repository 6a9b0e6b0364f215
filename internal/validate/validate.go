// Package validate checks submitted forms before they reach a service.
//
// Rules are declared as go-playground/validator tags on the form structs and
// failures are translated into apperror.FieldError values carrying the
// messages shown next to each form field.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

// clock24 accepts H:MM and HH:MM on a 24 hour clock.
var clock24 = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report json names so field errors line up with the submitted keys
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		mustRegister(v, "clock24", func(fl validator.FieldLevel) bool {
			return clock24.MatchString(fl.Field().String())
		})
		mustRegister(v, "category", func(fl validator.FieldLevel) bool {
			return model.Category(fl.Field().String()).Valid()
		})
		mustRegister(v, "attendees", func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && n > 0
		})

		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validate: registering " + tag + ": " + err.Error())
	}
}

// check runs the struct rules on form and translates the failures using
// messages, keyed by "field" or "field.tag". The more specific key wins.
func check(form any, messages map[string]string) []apperror.FieldError {
	err := get().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperror.FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{
			Field:   fe.Field(),
			Message: message(fe, messages),
		})
	}
	return fields
}

func message(fe validator.FieldError, messages map[string]string) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := messages[fe.Field()]; ok {
		return msg
	}
	return fe.Field() + " is invalid."
}

// Error turns field errors into an apperror, or nil when there are none.
func Error(fields []apperror.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return apperror.Invalid(fields)
}
