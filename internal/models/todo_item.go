package models

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const TitleMaxLength = 200

type TodoItem struct {
	ID        uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string     `json:"title" gorm:"size:200;not null" validate:"required,max=200"`
	IsDone    bool       `json:"is_done" gorm:"not null;default:false"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	UserID    string     `json:"user_id" gorm:"size:191;not null;index" validate:"required"`
	Version   int        `json:"version" gorm:"not null;default:1"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (TodoItem) TableName() string {
	return "todo_items"
}

// ValidationError carries per-field messages keyed by the form field name.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one reported.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims the title and checks the field constraints of the item.
// It returns nil or a *ValidationError.
func (t *TodoItem) Validate() error {
	t.Title = strings.TrimSpace(t.Title)

	verr := &ValidationError{}
	if err := validate.Struct(t); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), messageFor(fe))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
