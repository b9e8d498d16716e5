package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Kind classifies a failed invocation. Every kind is terminal for the call;
// nothing is retried.
type Kind string

const (
	KindUnknownOperation Kind = "UnknownOperation"
	KindInvalidArguments Kind = "InvalidArguments"
	KindStorage          Kind = "StorageError"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrStorage          = errors.New("storage error")
)

// FieldError names one argument that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Problem
}

// Error is returned by Invoke for every failure. It matches the Err* sentinels
// with errors.Is and unwraps to the underlying store error, if any.
type Error struct {
	Kind   Kind
	Op     string
	Fields []FieldError
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownOperation:
		return fmt.Sprintf("unknown operation %q", e.Op)
	case KindInvalidArguments:
		if len(e.Fields) == 0 && e.Err != nil {
			return fmt.Sprintf("invalid arguments for %s: %v", e.Op, e.Err)
		}
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		return fmt.Sprintf("invalid arguments for %s: %s", e.Op, strings.Join(parts, "; "))
	default:
		if e.Err == nil {
			return "storage error"
		}
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnknownOperation:
		return e.Kind == KindUnknownOperation
	case ErrInvalidArguments:
		return e.Kind == KindInvalidArguments
	case ErrStorage:
		return e.Kind == KindStorage
	}
	return false
}

func unknownOperation(op string) error {
	return &Error{Kind: KindUnknownOperation, Op: op}
}

func invalidArguments(op string, fields ...FieldError) error {
	return &Error{Kind: KindInvalidArguments, Op: op, Fields: fields}
}

func storageError(op string, err error) error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// sqliteCodes names the primary result codes callers are most likely to act on.
var sqliteCodes = map[sqlite3.ErrNo]string{
	sqlite3.ErrError:      "SQLITE_ERROR",
	sqlite3.ErrInternal:   "SQLITE_INTERNAL",
	sqlite3.ErrPerm:       "SQLITE_PERM",
	sqlite3.ErrAbort:      "SQLITE_ABORT",
	sqlite3.ErrBusy:       "SQLITE_BUSY",
	sqlite3.ErrLocked:     "SQLITE_LOCKED",
	sqlite3.ErrNomem:      "SQLITE_NOMEM",
	sqlite3.ErrReadonly:   "SQLITE_READONLY",
	sqlite3.ErrInterrupt:  "SQLITE_INTERRUPT",
	sqlite3.ErrIoErr:      "SQLITE_IOERR",
	sqlite3.ErrCorrupt:    "SQLITE_CORRUPT",
	sqlite3.ErrFull:       "SQLITE_FULL",
	sqlite3.ErrCantOpen:   "SQLITE_CANTOPEN",
	sqlite3.ErrSchema:     "SQLITE_SCHEMA",
	sqlite3.ErrTooBig:     "SQLITE_TOOBIG",
	sqlite3.ErrConstraint: "SQLITE_CONSTRAINT",
	sqlite3.ErrMismatch:   "SQLITE_MISMATCH",
	sqlite3.ErrMisuse:     "SQLITE_MISUSE",
	sqlite3.ErrRange:      "SQLITE_RANGE",
	sqlite3.ErrNotADB:     "SQLITE_NOTADB",
}

// sqliteCode extracts the SQLite result code name from a driver error.
func sqliteCode(err error) string {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}
	if name, ok := sqliteCodes[sqliteErr.Code]; ok {
		return name
	}
	return fmt.Sprintf("SQLITE_%d", int(sqliteErr.Code))
}
