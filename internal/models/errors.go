package models

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors of the dictionary engine. Wrap them with errors.Wrap to add
// context and test with errors.Is.
var (
	// ErrValidation marks malformed input. Nothing is persisted when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced dictionary, attribute or position that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate import or a store constraint violation.
	ErrConflict = errors.New("conflict")
)

// AppError is a per-item failure collected during batch or fan-out work.
type AppError struct {
	DictionaryID int64
	PositionID   int64
	Message      string
	Err          error
}

func (e *AppError) Error() string {
	if e.PositionID != 0 {
		if e.Err != nil {
			return fmt.Sprintf("DictionaryID %d, PositionID %d: %s - %v", e.DictionaryID, e.PositionID, e.Message, e.Err)
		}
		return fmt.Sprintf("DictionaryID %d, PositionID %d: %s", e.DictionaryID, e.PositionID, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("DictionaryID %d: %s - %v", e.DictionaryID, e.Message, e.Err)
	}

	return fmt.Sprintf("DictionaryID %d: %s", e.DictionaryID, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validationf returns an ErrValidation carrying a formatted message.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// NotFoundf returns an ErrNotFound carrying a formatted message.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// Conflictf returns an ErrConflict carrying a formatted message.
func Conflictf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}
