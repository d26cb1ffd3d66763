package analytics

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers.
const (
	CodeInvalidSource      = "invalid_source"
	CodeInvalidGroupBy     = "invalid_group_by"
	CodeInvalidDateRange   = "invalid_date_range"
	CodeInvalidFormat      = "invalid_format"
	CodeInvalidColumn      = "invalid_column"
	CodeInvalidFilter      = "invalid_filter"
	CodeInvalidOperator    = "invalid_operator"
	CodeBatchLimitExceeded = "batch_limit_exceeded"
	CodeServerError        = "server_error"
)

// QueryError is a validation failure with a stable machine code. Every
// QueryError is raised before any SQL executes.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string { return e.Message }

func newQueryError(code, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func errInvalidSource(name string) *QueryError {
	return newQueryError(CodeInvalidSource, "unknown source %q", name)
}

func errInvalidGroupBy(name string) *QueryError {
	return newQueryError(CodeInvalidGroupBy, "unknown group_by %q", name)
}

func errInvalidDateRange(value string) *QueryError {
	return newQueryError(CodeInvalidDateRange, "invalid date range %q", value)
}

func errInvalidFormat(value string) *QueryError {
	return newQueryError(CodeInvalidFormat, "unsupported format %q", value)
}

func errInvalidColumn(name string) *QueryError {
	return newQueryError(CodeInvalidColumn, "unknown column %q", name)
}

func errInvalidFilter(name string) *QueryError {
	return newQueryError(CodeInvalidFilter, "unknown filter %q", name)
}

func errInvalidOperator(format string, args ...any) *QueryError {
	return newQueryError(CodeInvalidOperator, format, args...)
}

func errBatchLimitExceeded(limit int) *QueryError {
	return newQueryError(CodeBatchLimitExceeded, "batch requests are limited to %d queries", limit)
}

// ErrorCode extracts the stable code from an error, falling back to
// server_error for anything that is not a QueryError.
func ErrorCode(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeServerError
}
