package coinledger

import (
	"context"
	"testing"
)

func TestEconomyAggregates(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, WithLargeTransactionThreshold(100))
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 500)

	if _, err := service.Settle(context.Background(), mustCallInput(test, mustCallID(test, "call-1"), payer, earner, 600, 10)); err != nil {
		test.Fatalf("settle: %v", err)
	}

	economy, err := service.Economy(context.Background())
	if err != nil {
		test.Fatalf("economy: %v", err)
	}
	// Seed credit 500 + call earning 100 minted; call spend 100 burned.
	if economy.AllTimeMinted != 600 || economy.AllTimeMintedCount != 2 {
		test.Fatalf("minted %d (%d), want 600 (2)", economy.AllTimeMinted, economy.AllTimeMintedCount)
	}
	if economy.AllTimeBurned != 100 || economy.AllTimeBurnedCount != 1 {
		test.Fatalf("burned %d (%d), want 100 (1)", economy.AllTimeBurned, economy.AllTimeBurnedCount)
	}
	if economy.TotalInCirculation != 500 {
		test.Fatalf("circulation = %d, want 500", economy.TotalInCirculation)
	}
	if economy.TotalInCirculation != economy.AllTimeMinted-economy.AllTimeBurned {
		test.Fatalf("leak check failed: %d != %d - %d", economy.TotalInCirculation, economy.AllTimeMinted, economy.AllTimeBurned)
	}
	if len(economy.TopSpenders) != 1 || economy.TopSpenders[0].Total != 100 {
		test.Fatalf("unexpected top spenders: %+v", economy.TopSpenders)
	}
	if len(economy.TopEarners) != 1 || economy.TopEarners[0].Total != 100 {
		test.Fatalf("unexpected top earners: %+v", economy.TopEarners)
	}
	if len(economy.RecentLargeTransactions) != 3 {
		test.Fatalf("expected 3 transactions at or above threshold, got %d", len(economy.RecentLargeTransactions))
	}
	if len(economy.DailyFlow) == 0 {
		test.Fatalf("expected daily flow rows")
	}
}

func TestCallsPaginationAndAnomalyFilter(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 1000)

	if _, err := service.Settle(context.Background(), mustCallInput(test, mustCallID(test, "call-normal"), payer, earner, 300, 10)); err != nil {
		test.Fatalf("settle normal: %v", err)
	}
	if _, err := service.Settle(context.Background(), mustCallInput(test, mustCallID(test, "call-zero"), payer, earner, 0, 10)); err != nil {
		test.Fatalf("settle zero: %v", err)
	}
	if _, err := service.Settle(context.Background(), mustCallInput(test, mustCallID(test, "call-short"), payer, earner, 4, 10)); err != nil {
		test.Fatalf("settle short: %v", err)
	}

	all, err := service.Calls(context.Background(), Page{Number: 1, Limit: 2}, false)
	if err != nil {
		test.Fatalf("calls: %v", err)
	}
	if all.Total != 3 || all.TotalPages != 2 || len(all.Calls) != 2 {
		test.Fatalf("unexpected page: total=%d pages=%d rows=%d", all.Total, all.TotalPages, len(all.Calls))
	}

	anomalies, err := service.Calls(context.Background(), Page{Number: 1, Limit: 10}, true)
	if err != nil {
		test.Fatalf("anomalies: %v", err)
	}
	if anomalies.Total != 2 {
		test.Fatalf("expected 2 anomalous calls, got %d", anomalies.Total)
	}
	for _, call := range anomalies.Calls {
		if !call.IsZeroDuration() && !call.IsVeryShort() {
			test.Fatalf("non-anomalous call in filter: %+v", call)
		}
	}
}

func TestActionLogPagination(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	userID := mustUserID(test, "user-1")

	for index := 0; index < 3; index++ {
		if _, err := service.Adjust(context.Background(), userID, 10, mustReason(test, "repeated bonus"), "admin-1", "admin@example.com"); err != nil {
			test.Fatalf("adjust %d: %v", index, err)
		}
	}

	page, err := service.ActionLog(context.Background(), Page{Number: 2, Limit: 2})
	if err != nil {
		test.Fatalf("action log: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Actions) != 1 {
		test.Fatalf("unexpected action page: total=%d pages=%d rows=%d", page.Total, page.TotalPages, len(page.Actions))
	}
	if page.Actions[0].Action != "adjust_coins" {
		test.Fatalf("unexpected action: %+v", page.Actions[0])
	}
}

func TestCountersTrackFailuresAndNegatives(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 5)

	if _, err := service.Settle(context.Background(), mustCallInput(test, mustCallID(test, "call-broke"), payer, earner, 600, 10)); err == nil {
		test.Fatalf("expected settlement rejection")
	}

	counters, err := service.Counters(context.Background())
	if err != nil {
		test.Fatalf("counters: %v", err)
	}
	if counters.FailedTransactionsLastHour != 1 {
		test.Fatalf("failed counter = %d, want 1", counters.FailedTransactionsLastHour)
	}
	if counters.NegativeBalanceAccounts != 0 {
		test.Fatalf("negative balance counter = %d, want 0", counters.NegativeBalanceAccounts)
	}
}
