package coinledger

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation string
	UserID    UserID
	CallID    *CallID
	Amount    int64
	AdminID   string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithRefundMaxAgeDays blocks refunds for calls older than the given number of
// days. Zero disables the age policy.
func WithRefundMaxAgeDays(days int64) ServiceOption {
	return func(service *Service) {
		service.refundMaxAgeDays = days
	}
}

// WithLargeTransactionThreshold sets the amount at which transactions appear in
// the economy report's large-transaction list.
func WithLargeTransactionThreshold(threshold int64) ServiceOption {
	return func(service *Service) {
		if threshold > 0 {
			service.largeAmountThreshold = threshold
		}
	}
}

// WithReconcileSampleSize bounds how many accounts a global check replays.
func WithReconcileSampleSize(size int) ServiceOption {
	return func(service *Service) {
		if size > 0 {
			service.reconcileSampleSize = size
		}
	}
}
