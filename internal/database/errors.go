// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: errors.go
// PURPOSE: Error taxonomy of the query layer.
//
// KEY TYPES:
// - LoadError: malformed query definition, fatal at startup
// - MissingParameterError / TypeMismatchError: caller errors, never retried
// - ExecutionError: driver failure carrying the database error code
//
// RELATED FILES:
// - registry.go: returns LoadError
// - binder.go: returns MissingParameterError and TypeMismatchError
// - queries.go: returns ExecutionError
package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"
)

// Sentinel errors, matched with errors.Is
var (
	ErrUnknownQuery      = errors.New("unknown query")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrTypeMismatch      = errors.New("parameter type mismatch")
	ErrExecution         = errors.New("query execution failed")
	ErrInvalidDefinition = errors.New("invalid query definition")
	ErrSequenceConsumed  = errors.New("record sequence already consumed")
)

// LoadError reports a query definition that cannot be loaded.
// It is a programming error and should stop the process.
type LoadError struct {
	Query  string
	File   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load query definitions"
	if e.Query != "" {
		msg += " (" + e.Query + ")"
	}
	if e.File != "" {
		msg += " [" + e.File + "]"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrInvalidDefinition }

// MissingParameterError names a required parameter the caller did not supply.
type MissingParameterError struct {
	Query string
	Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("query %s: missing parameter %q", e.Query, e.Param)
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }

// TypeMismatchError names a parameter whose value does not have the declared kind.
type TypeMismatchError struct {
	Query    string
	Param    string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("query %s: parameter %q must be %s, got %s", e.Query, e.Param, e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ExecutionError wraps a driver or database failure unchanged.
// Code is the database's own error code when the driver exposes one.
type ExecutionError struct {
	Query string
	Code  string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query %s failed (code %s): %v", e.Query, e.Code, e.Err)
	}
	return fmt.Sprintf("query %s failed: %v", e.Query, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

func newExecutionError(query string, err error) *ExecutionError {
	return &ExecutionError{Query: query, Code: driverErrorCode(err), Err: err}
}

// driverErrorCode extracts the vendor error code from the supported drivers.
func driverErrorCode(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return strconv.Itoa(int(msErr.Number))
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(int(liteErr.Code))
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return ""
}
