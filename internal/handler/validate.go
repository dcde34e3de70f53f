package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Nigerian numbers: +234 followed by ten digits, or a leading 0 and ten digits.
var ngPhone = regexp.MustCompile(`^(\+234\d{10}|0\d{10})$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("ngphone", func(fl validator.FieldLevel) bool {
		return ngPhone.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return domain.ValidSlug(fl.Field().String())
	})
	return v
}

// validateStruct checks dst's validate tags and reports the first failure.
func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	// A nil or non-struct dst is a programming error, not a bad request.
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validate %T: %w", dst, err)
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	fe := errs[0]
	return &domain.ErrValidation{Field: fieldPath(fe), Message: describe(fe)}
}

// fieldPath drops the root struct name from the namespace, so nested
// fields read as "shipping_address.phone".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "ngphone":
		return "must be a Nigerian phone number (+234XXXXXXXXXX or 0XXXXXXXXXX)"
	case "slug":
		return "must be lowercase kebab-case"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}
