package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pathakanu/pillMemo/internal/model"
)

// CreateReminderRequest is the JSON body of POST /api/v1/reminders.
type CreateReminderRequest struct {
	OwnerID            string    `json:"owner_id" binding:"required"`
	MedicineName       string    `json:"medicine_name" binding:"required"`
	ScheduledTime      time.Time `json:"scheduled_time" binding:"required"`
	DestinationAddress string    `json:"destination_address" binding:"required"`
	Frequency          string    `json:"frequency"`
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// toReminder validates the request and builds the row to persist.
func (r CreateReminderRequest) toReminder() (*model.Reminder, error) {
	owner := strings.TrimSpace(r.OwnerID)
	if owner == "" {
		return nil, &ValidationError{Field: "owner_id", Message: "owner_id cannot be blank"}
	}

	medicine := strings.TrimSpace(r.MedicineName)
	if medicine == "" {
		return nil, &ValidationError{Field: "medicine_name", Message: "medicine_name cannot be blank"}
	}

	destination, err := model.NormalizeDestination(r.DestinationAddress)
	if err != nil {
		return nil, &ValidationError{Field: "destination_address", Message: err.Error()}
	}

	frequency, err := model.ParseFrequency(r.Frequency)
	if err != nil {
		return nil, &ValidationError{Field: "frequency", Message: err.Error()}
	}

	return &model.Reminder{
		OwnerID:            owner,
		MedicineName:       medicine,
		ScheduledTime:      r.ScheduledTime.UTC(),
		DestinationAddress: destination,
		Frequency:          frequency,
	}, nil
}

// bindErrorField names the JSON field behind a binding error, or "" when it
// cannot be attributed to one field.
func bindErrorField(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return jsonFieldName(validationErrs[0].StructField())
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}

	// scheduled_time is the only time field in the request.
	var parseErr *time.ParseError
	if errors.As(err, &parseErr) {
		return "scheduled_time"
	}
	return ""
}

func jsonFieldName(structField string) string {
	f, ok := reflect.TypeOf(CreateReminderRequest{}).FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return structField
	}
	return name
}
