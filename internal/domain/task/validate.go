package task

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return sf.Name
		}
		return name
	})

	return v
}

// record mirrors the stored shape of a task for rule checking.
type record struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"max=1000"`
	Status      Status   `json:"status" validate:"oneof=pending in-progress completed"`
	Priority    Priority `json:"priority" validate:"oneof=low medium high"`
	OwnerID     string   `json:"userId" validate:"required"`
}

// Validate checks a fully-merged task against the storage constraints.
func Validate(t Task) error {
	err := validate.Struct(record{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		OwnerID:     t.OwnerID,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("Could not validate task", err)
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: apperr.RuleMessage(fe.Tag(), fe.Param()),
		})
	}

	return apperr.Validation("Validation error", fields...)
}

var dueDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseDueDate accepts the ISO 8601 shapes browsers and clients send.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, apperr.Validation("Validation error", apperr.FieldError{
		Field:   "dueDate",
		Rule:    "iso8601",
		Message: apperr.RuleMessage("iso8601", ""),
	})
}
