package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid matches every *ValidationError via errors.Is.
var ErrInvalid = errors.New("validation failed")

const rootPath = "(root)"

// FieldError describes one violated constraint.
type FieldError struct {
	Path       string `json:"path"`
	Constraint string `json:"constraint"`
}

// ValidationError carries every violation found in a single input.
type ValidationError struct {
	Subject    string
	Violations []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Path+": "+v.Constraint)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(parts, "; "))
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Paths returns the path of every violation, in report order.
func (e *ValidationError) Paths() []string {
	paths := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		paths = append(paths, v.Path)
	}
	return paths
}

type violations []FieldError

func (v *violations) add(path, constraint string) {
	if path == "" {
		path = rootPath
	}
	*v = append(*v, FieldError{Path: path, Constraint: constraint})
}

func newRootError(subject, constraint string) *ValidationError {
	return &ValidationError{
		Subject:    subject,
		Violations: []FieldError{{Path: rootPath, Constraint: constraint}},
	}
}
