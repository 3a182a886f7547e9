package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	ErrorInvalidPath      = "invalid_path"
	ErrorOutsideRoot      = "outside_resource_root"
	ErrorPathNotFound     = "path_not_found"
	ErrorNotDirectory     = "not_a_directory"
	ErrorPermissionDenied = "permission_denied"
	ErrorIO               = "io_error"
)

// Error is a categorized resource access failure. Category is stable and
// safe to show to renderers.
type Error struct {
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// CategoryFromError returns the stable category for err.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrorPathNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrorPermissionDenied
	}
	return ErrorIO
}

// NormalizeIOError converts OS-level errors into categorized errors without
// leaking absolute paths.
func NormalizeIOError(err error, detail string) error {
	if err == nil {
		return nil
	}

	category := CategoryFromError(err)
	switch category {
	case ErrorPathNotFound:
		return NewError(category, "path does not exist")
	case ErrorPermissionDenied:
		return NewError(category, "operation not permitted")
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return NewError(category, pathErr.Err.Error())
	}
	if detail == "" {
		detail = err.Error()
	}
	return NewError(category, detail)
}
