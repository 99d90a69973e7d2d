package coinledger

import (
	"context"
	"testing"
)

func TestLedgerInvariantHoldsAcrossOperations(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 100)
	store.seedBalance(test, service, earner, 50)

	callID := mustCallID(test, "call-1")
	if _, err := service.Settle(context.Background(), mustCallInput(test, callID, payer, earner, 90, 10)); err != nil {
		test.Fatalf("settle: %v", err)
	}
	if _, err := service.Adjust(context.Background(), earner, 30, mustReason(test, "bonus"), "admin-1", "admin@example.com"); err != nil {
		test.Fatalf("adjust: %v", err)
	}
	if _, err := service.Refund(context.Background(), callID, mustReason(test, "test issue"), "admin-1", "admin@example.com"); err != nil {
		test.Fatalf("refund: %v", err)
	}

	for accountID := range store.accounts {
		check, err := service.CheckAccount(context.Background(), accountID)
		if err != nil {
			test.Fatalf("check account %s: %v", accountID, err)
		}
		if !check.Healthy() {
			test.Fatalf("account %s drifted: actual=%d expected=%d", accountID, check.ActualBalance, check.ExpectedBalance)
		}
	}

	global, err := service.CheckGlobal(context.Background())
	if err != nil {
		test.Fatalf("check global: %v", err)
	}
	if !global.Healthy() {
		test.Fatalf("circulation %d != minted %d - burned %d", global.TotalInCirculation, global.AllTimeMinted, global.AllTimeBurned)
	}
	if global.DriftedAccounts != 0 {
		test.Fatalf("expected no drifted accounts, got %d", global.DriftedAccounts)
	}
}

func TestCheckAccountDetectsDirectBalanceWrite(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	userID := mustUserID(test, "user-1")
	store.seedBalance(test, service, userID, 100)

	// Simulate an out-of-band mutation that bypassed the transaction log.
	accountID := store.accountsByUser[userID.String()]
	store.accounts[accountID].Balance += 7

	check, err := service.CheckAccount(context.Background(), accountID)
	if err != nil {
		test.Fatalf("check account: %v", err)
	}
	if check.Healthy() {
		test.Fatalf("expected drift to be detected")
	}
	if check.Discrepancy != 7 {
		test.Fatalf("discrepancy = %d, want 7", check.Discrepancy)
	}
}

func TestCheckGlobalRaisesAlarmOnDrift(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	recorder := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(recorder))
	userID := mustUserID(test, "user-1")
	store.seedBalance(test, service, userID, 100)

	accountID := store.accountsByUser[userID.String()]
	store.accounts[accountID].Balance -= 5

	global, err := service.CheckGlobal(context.Background())
	if err != nil {
		test.Fatalf("check global: %v", err)
	}
	if global.Healthy() {
		test.Fatalf("expected global drift")
	}
	if global.Drift != -5 {
		test.Fatalf("drift = %d, want -5", global.Drift)
	}
	if global.DriftedAccounts != 1 {
		test.Fatalf("drifted accounts = %d, want 1", global.DriftedAccounts)
	}
	if len(recorder.entries) == 0 {
		test.Fatalf("expected a reconciliation alarm in the operation log")
	}
	alarm := recorder.entries[len(recorder.entries)-1]
	if alarm.Operation != "reconcile" || alarm.Error == nil {
		test.Fatalf("unexpected alarm entry: %+v", alarm)
	}
}

func TestFailedTransactionsDoNotAffectReconciliation(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 10)

	// Rejected settlement writes a failed audit row.
	input := mustCallInput(test, mustCallID(test, "call-broke"), payer, earner, 600, 10)
	if _, err := service.Settle(context.Background(), input); err == nil {
		test.Fatalf("expected settlement rejection")
	}

	global, err := service.CheckGlobal(context.Background())
	if err != nil {
		test.Fatalf("check global: %v", err)
	}
	if !global.Healthy() {
		test.Fatalf("failed rows leaked into the aggregate: drift=%d", global.Drift)
	}
}
