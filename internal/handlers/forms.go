package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"todo-app/backend/internal/models"
	"todo-app/backend/internal/services"
)

const dueDateFormLayout = "2006-01-02T15:04"

var dueDateLayouts = []string{time.RFC3339, dueDateFormLayout, "2006-01-02"}

// checkbox accepts the values browsers and JSON clients send for a boolean
// field: "on", "true", "1" and JSON booleans.
type checkbox bool

func (b *checkbox) UnmarshalParam(param string) error {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "on", "true", "1", "yes", "checked":
		*b = true
	case "", "off", "false", "0", "no":
		*b = false
	default:
		v, err := strconv.ParseBool(param)
		if err != nil {
			return err
		}
		*b = checkbox(v)
	}
	return nil
}

func (b *checkbox) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = checkbox(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return b.UnmarshalParam(s)
}

// TodoItemForm is everything a client may post for a todo item. Owner and
// creation time have no field here, so they can never be bound.
type TodoItemForm struct {
	ID      uint     `form:"id" json:"id"`
	Title   string   `form:"title" json:"title"`
	IsDone  checkbox `form:"is_done" json:"is_done"`
	DueDate string   `form:"due_date" json:"due_date"`
	Version int      `form:"version" json:"version"`
}

// FormView is the model of the create and edit views.
type FormView struct {
	Form    TodoItemForm      `json:"form"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
}

// IndexView is the model of the list view.
type IndexView struct {
	Items []models.TodoItem `json:"items"`
}

func parseDueDate(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// toInput converts the form into service input, collecting field errors that
// can be detected without touching the store.
func (f TodoItemForm) toInput(ownerID string) (services.TodoItemInput, *models.ValidationError) {
	input := services.TodoItemInput{
		ID:      f.ID,
		Title:   f.Title,
		IsDone:  bool(f.IsDone),
		Version: f.Version,
	}

	due, ok := parseDueDate(f.DueDate)
	if ok {
		input.DueDate = due
		return input, nil
	}

	verr := &models.ValidationError{Fields: map[string]string{}}
	verr.Add("due_date", "is not a valid date")
	probe := models.TodoItem{Title: f.Title, UserID: ownerID}
	var titleErr *models.ValidationError
	if err := probe.Validate(); errors.As(err, &titleErr) {
		for field, msg := range titleErr.Fields {
			verr.Add(field, msg)
		}
	}
	return input, verr
}

func formFromItem(item models.TodoItem) TodoItemForm {
	form := TodoItemForm{
		ID:      item.ID,
		Title:   item.Title,
		IsDone:  checkbox(item.IsDone),
		Version: item.Version,
	}
	if item.DueDate != nil {
		form.DueDate = item.DueDate.UTC().Format(dueDateFormLayout)
	}
	return form
}
