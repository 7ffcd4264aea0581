package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"escaperoom/pkg/logger"
	"escaperoom/pkg/model"

	"github.com/go-playground/validator/v10"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]{0,127}$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields returns the errors keyed by JSON field name, for error details.
func (v ValidationErrors) Fields() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type HoldValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewHoldValidator(log *logger.Logger) *HoldValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("identifier", validateIdentifier); err != nil {
		log.Fatal("Failed to register 'identifier' validator",
			"error", err,
		)
	}

	return &HoldValidator{
		validate: v,
		logger:   log,
	}
}

// ValidIdentifier reports whether s can be used as a slot, room, hold or
// user id.
func ValidIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return ValidIdentifier(fl.Field().String())
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func (v *HoldValidator) ValidateCreate(req *model.CreateHoldRequest) error {
	return v.check(req)
}

func (v *HoldValidator) ValidateAction(req *model.HoldActionRequest) error {
	return v.check(req)
}

func (v *HoldValidator) check(req any) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "identifier":
			message = fmt.Sprintf("%s must be 1-128 characters of letters, digits or . _ : @ -", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
