package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"medislot/pkg/logger"
	"medislot/pkg/model"
)

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

// Fields returns field -> message, suitable for error details.
func (v ValidationErrors) Fields() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type AppointmentValidator struct {
	validate *validator.Validate
	slots    *model.SlotSet
	logger   *logger.Logger
}

func NewAppointmentValidator(slots *model.SlotSet, log *logger.Logger) *AppointmentValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	av := &AppointmentValidator{
		validate: v,
		slots:    slots,
		logger:   log,
	}

	if err := v.RegisterValidation("isodate", validateISODate); err != nil {
		log.Fatal("Failed to register 'isodate' validator", "error", err)
	}
	if err := v.RegisterValidation("timeslot", av.validateTimeSlot); err != nil {
		log.Fatal("Failed to register 'timeslot' validator", "error", err)
	}
	if err := v.RegisterValidation("appointment_status", validateStatus); err != nil {
		log.Fatal("Failed to register 'appointment_status' validator", "error", err)
	}

	log.Info("Appointment validator initialized successfully", "time_slots", len(slots.Labels()))

	return av
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// validateISODate accepts only zero-padded YYYY-MM-DD calendar days.
func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	d, err := time.Parse(model.DateLayout, s)
	return err == nil && d.Format(model.DateLayout) == s
}

func (v *AppointmentValidator) validateTimeSlot(fl validator.FieldLevel) bool {
	return v.slots.Contains(fl.Field().String())
}

func validateStatus(fl validator.FieldLevel) bool {
	_, ok := model.ParseStatus(fl.Field().String())
	return ok
}

func (v *AppointmentValidator) ValidateBook(req *model.BookRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *AppointmentValidator) ValidateChangeStatus(req *model.ChangeStatusRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *AppointmentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "isodate":
			message = fmt.Sprintf("%s must be a calendar day in YYYY-MM-DD format", err.Field())
		case "timeslot":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), strings.Join(v.slots.Labels(), ", "))
		case "appointment_status":
			message = fmt.Sprintf("%s must be one of: pending, accepted, completed, cancelled", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
