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

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRegex.MatchString(fl.Field().String())
	}); err != nil {
		log.Fatal("Failed to register 'identifier' validator",
			"error", err,
		)
	}

	return &SlotValidator{
		validate: v,
		logger:   log,
	}
}

func (v *SlotValidator) Validate(slot *model.Slot) error {
	if err := v.validate.Struct(slot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// ValidRoomID is used for the optional room filter on listings.
func ValidRoomID(roomID string) bool {
	return identifierRegex.MatchString(roomID)
}

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "identifier":
			message = fmt.Sprintf("%s must be 1-128 characters of letters, digits or . _ : @ -", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), "start_time")
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
