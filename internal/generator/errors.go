package generator

import (
	"errors"
	"fmt"
	"strings"

	"justicebid/api/internal/store"
)

// ErrOCGNotFound is returned when the named guideline does not exist.
var ErrOCGNotFound = errors.New("ocg not found")

// ErrTemplateNotFound is returned when a template file cannot be read.
var ErrTemplateNotFound = errors.New("template not found")

// ValidationError lists the structural problems that block publishing.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "ocg validation failed: " + strings.Join(e.Issues, "; ")
}

// StatusError reports an operation attempted in the wrong lifecycle status.
type StatusError struct {
	Operation string
	Current   store.Status
	Required  store.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s requires status %s, current status is %s", e.Operation, e.Required, e.Current)
}
