package wall

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindStorage      ErrorKind = "storage"
	KindDatabase     ErrorKind = "database"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrReactionNotFound   = errors.New("reaction not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error classifies a failure so handlers can pick a status code.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindDatabase for unclassified errors.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindDatabase
}

func validationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

func storageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// databaseError maps gorm's not-found to notFound and everything else to KindDatabase.
func databaseError(op string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Err: notFound}
	}
	return &Error{Kind: KindDatabase, Op: op, Err: err}
}
