package coinledger

import (
	"context"
	"errors"
	"testing"
)

func TestSettleCoinsRoundsUp(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name            string
		durationSeconds int64
		pricePerMinute  int64
		expected        int64
	}{
		{name: "zero duration", durationSeconds: 0, pricePerMinute: 10, expected: 0},
		{name: "zero price", durationSeconds: 120, pricePerMinute: 0, expected: 0},
		{name: "exact minute", durationSeconds: 60, pricePerMinute: 10, expected: 10},
		{name: "partial minute rounds up", durationSeconds: 90, pricePerMinute: 10, expected: 15},
		{name: "one second charges", durationSeconds: 1, pricePerMinute: 10, expected: 1},
		{name: "fraction below one coin rounds up", durationSeconds: 5, pricePerMinute: 1, expected: 1},
		{name: "long call", durationSeconds: 3601, pricePerMinute: 7, expected: 421},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := SettleCoins(testCase.durationSeconds, testCase.pricePerMinute); got != testCase.expected {
				test.Fatalf("SettleCoins(%d, %d) = %d, want %d", testCase.durationSeconds, testCase.pricePerMinute, got, testCase.expected)
			}
		})
	}
}

func TestSettlePostsSymmetricPair(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 100)
	store.seedBalance(test, service, earner, 50)

	input := mustCallInput(test, mustCallID(test, "call-1"), payer, earner, 90, 10)
	call, err := service.Settle(context.Background(), input)
	if err != nil {
		test.Fatalf("settle: %v", err)
	}
	if call.CoinsDeducted != 15 || call.CoinsEarned != 15 {
		test.Fatalf("expected 15 coins each way, got deducted=%d earned=%d", call.CoinsDeducted, call.CoinsEarned)
	}
	if got := store.mustBalance(test, payer); got != 85 {
		test.Fatalf("payer balance = %d, want 85", got)
	}
	if got := store.mustBalance(test, earner); got != 65 {
		test.Fatalf("earner balance = %d, want 65", got)
	}
}

func TestSettleZeroDurationPostsNoTransactions(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 100)
	transactionsBefore := len(store.transactions)

	input := mustCallInput(test, mustCallID(test, "call-zero"), payer, earner, 0, 10)
	call, err := service.Settle(context.Background(), input)
	if err != nil {
		test.Fatalf("settle: %v", err)
	}
	if call.CoinsDeducted != 0 {
		test.Fatalf("expected zero deduction, got %d", call.CoinsDeducted)
	}
	if len(store.transactions) != transactionsBefore {
		test.Fatalf("expected no new transactions, got %d", len(store.transactions)-transactionsBefore)
	}
	if got := store.mustBalance(test, payer); got != 100 {
		test.Fatalf("payer balance = %d, want 100", got)
	}
	store.mustCall(test, input.CallID)
}

func TestSettleInsufficientFundsIsAllOrNothing(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 10)
	store.seedBalance(test, service, earner, 5)

	input := mustCallInput(test, mustCallID(test, "call-broke"), payer, earner, 600, 10)
	_, err := service.Settle(context.Background(), input)
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := store.mustBalance(test, payer); got != 10 {
		test.Fatalf("payer balance moved to %d on failed settlement", got)
	}
	if got := store.mustBalance(test, earner); got != 5 {
		test.Fatalf("earner balance moved to %d on failed settlement", got)
	}
	call := store.mustCall(test, input.CallID)
	if !call.FlaggedForReview {
		test.Fatalf("expected call flagged for review")
	}
	if call.CoinsDeducted != 0 {
		test.Fatalf("expected no coins recorded as deducted, got %d", call.CoinsDeducted)
	}
	failed, err := store.ListFailedTransactions(context.Background(), 10)
	if err != nil {
		test.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 {
		test.Fatalf("expected one failed audit row, got %d", len(failed))
	}
	if failed[0].Amount.Int64() != 100 {
		test.Fatalf("failed audit amount = %d, want 100", failed[0].Amount.Int64())
	}
}

func TestSettleSameCallTwiceIsRejected(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	store.seedBalance(test, service, payer, 100)

	input := mustCallInput(test, mustCallID(test, "call-dup"), payer, earner, 60, 10)
	if _, err := service.Settle(context.Background(), input); err != nil {
		test.Fatalf("first settle: %v", err)
	}
	_, err := service.Settle(context.Background(), input)
	if !errors.Is(err, ErrCallAlreadySettled) {
		test.Fatalf("expected ErrCallAlreadySettled, got %v", err)
	}
	if got := store.mustBalance(test, payer); got != 90 {
		test.Fatalf("payer charged twice: balance = %d, want 90", got)
	}
}

func TestCallInputValidation(test *testing.T) {
	test.Parallel()
	payer := mustUserID(test, "payer")
	earner := mustUserID(test, "earner")
	callID := mustCallID(test, "call-1")

	if _, err := NewCallInput(callID, payer, payer, 60, 10); !errors.Is(err, ErrInvalidUserID) {
		test.Fatalf("expected ErrInvalidUserID for self-call, got %v", err)
	}
	if _, err := NewCallInput(callID, payer, earner, -1, 10); !errors.Is(err, ErrInvalidCallInput) {
		test.Fatalf("expected ErrInvalidCallInput for negative duration, got %v", err)
	}
	if _, err := NewCallInput(callID, payer, earner, 60, -1); !errors.Is(err, ErrInvalidCallInput) {
		test.Fatalf("expected ErrInvalidCallInput for negative price, got %v", err)
	}
}
