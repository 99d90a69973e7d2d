package coinledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the settlement engine.
var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrAlreadyRefunded          = errors.New("call already refunded")
	ErrCallNotRefundable        = errors.New("call not refundable")
	ErrCallAlreadySettled       = errors.New("call already settled")
	ErrCallNotFound             = errors.New("call not found")
	ErrAccountNotFound          = errors.New("account not found")
	ErrReconciliationDrift      = errors.New("reconciliation drift")
	ErrSettlementFailed         = errors.New("settlement failed")
	ErrInvalidUserID            = errors.New("invalid user id")
	ErrInvalidAccountID         = errors.New("invalid account id")
	ErrInvalidCallID            = errors.New("invalid call id")
	ErrInvalidCallInput         = errors.New("invalid call input")
	ErrInvalidReason            = errors.New("invalid reason")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidTransactionSource = errors.New("invalid transaction source")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrInvalidRefundStatus      = errors.New("invalid refund status")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
