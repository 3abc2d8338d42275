package engine

import (
	"errors"
	"fmt"

	"github.com/propintel/backend/internal/models"
)

var ErrInvalidConfig = errors.New("invalid engine config")

// InvalidInputError reports a required field that is missing or out of range.
type InvalidInputError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %q: %s %s", e.Entity, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// IsInvalidInput reports whether err is, or wraps, an *InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func skippedFrom(id string, err error) models.SkippedItem {
	return models.SkippedItem{ID: id, Reason: err.Error()}
}
