// Package domain holds the error taxonomy shared by every workflow.
// Handlers translate codes to HTTP statuses; repositories wrap driver
// errors before they ever reach a caller.
package domain

import (
	"errors"
	"fmt"
)

// Machine-readable error codes.
const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	EUNAUTHORIZED = "unauthorized"
	EFORBIDDEN    = "forbidden"
	ECONFLICT     = "conflict"
	EPAYMENT      = "payment_incomplete"
	EINTERNAL     = "internal"
)

// Error carries a code and a client-safe message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("storefront: code=%s message=%s", e.Code, e.Message)
}

func Invalidf(format string, args ...any) *Error {
	return &Error{Code: EINVALID, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: ENOTFOUND, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(message string) *Error {
	return &Error{Code: EFORBIDDEN, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Code: EUNAUTHORIZED, Message: message}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Code: ECONFLICT, Message: fmt.Sprintf(format, args...)}
}

// ErrPaymentNotComplete is returned when the gateway reports anything
// other than a succeeded intent during confirmation.
var ErrPaymentNotComplete = &Error{Code: EPAYMENT, Message: "payment not completed"}

// ErrSignatureVerification deliberately carries one constant message so
// callers cannot tell which part of the signature check failed.
var ErrSignatureVerification = &Error{Code: EINVALID, Message: "webhook signature verification failed"}

// InsufficientStockError reports a reservation that exceeds available
// stock with enough detail for client display.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

// ErrorCode extracts the taxonomy code from err, or EINTERNAL for
// anything unclassified.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var stock *InsufficientStockError
	if errors.As(err, &stock) {
		return ECONFLICT
	}
	return EINTERNAL
}

// ErrorMessage extracts the client-safe message from err. Unclassified
// errors report a generic message; their detail stays in the logs.
func ErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var stock *InsufficientStockError
	if errors.As(err, &stock) {
		return stock.Error()
	}
	return "internal server error"
}
