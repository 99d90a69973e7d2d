package coinledger

const (
	operationSettle    = "settle"
	operationRefund    = "refund"
	operationAdjust    = "adjust"
	operationReconcile = "reconcile"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	secondsPerMinute     = 60
	secondsPerDay        = 86400
	veryShortCallSeconds = 10

	defaultReconcileSampleSize   = 25
	defaultLargeAmountThreshold  = 1000
	defaultDailyFlowDays         = 14
	defaultTopActorLimit         = 10
	defaultLargeTransactionLimit = 20
	defaultFailedTransactionList = 20

	// Block reasons surfaced verbatim by the dashboard.
	blockReasonZeroSpend       = "No coins were deducted for this call"
	blockReasonAlreadyRefunded = "Call already refunded"
	blockReasonTooOld          = "Call too old to refund"
)
