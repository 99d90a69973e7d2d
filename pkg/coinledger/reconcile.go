package coinledger

import "context"

// CheckAccount replays the account's completed transactions and compares the
// sum against the projected balance. Zero discrepancy is the only healthy
// value. Read-only.
func (service *Service) CheckAccount(ctx context.Context, accountID string) (AccountCheck, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return AccountCheck{}, err
	}
	credited, debited, err := service.store.SumCompleted(ctx, accountID)
	if err != nil {
		return AccountCheck{}, err
	}
	expected := credited - debited
	return AccountCheck{
		AccountID:       accountID,
		TotalCredited:   credited,
		TotalDebited:    debited,
		ExpectedBalance: expected,
		ActualBalance:   account.Balance,
		Discrepancy:     account.Balance - expected,
	}, nil
}

// CheckGlobal compares total circulation against the exact all-time
// minted-minus-burned aggregate, and replays a bounded sample of accounts.
// The aggregate comparison is never sampled. A nonzero drift is a platform
// alarm: it is reported through the operation logger but returned to the
// caller rather than raised as an error.
func (service *Service) CheckGlobal(ctx context.Context) (GlobalCheck, error) {
	circulation, err := service.store.SumAllBalances(ctx)
	if err != nil {
		return GlobalCheck{}, err
	}
	aggregate, err := service.store.AggregateCompleted(ctx)
	if err != nil {
		return GlobalCheck{}, err
	}
	check := GlobalCheck{
		TotalInCirculation: circulation,
		AllTimeMinted:      aggregate.Minted,
		AllTimeBurned:      aggregate.Burned,
		Drift:              circulation - (aggregate.Minted - aggregate.Burned),
	}
	accountIDs, err := service.store.SampleAccountIDs(ctx, service.reconcileSampleSize)
	if err != nil {
		return GlobalCheck{}, err
	}
	for _, accountID := range accountIDs {
		accountCheck, err := service.CheckAccount(ctx, accountID)
		if err != nil {
			return GlobalCheck{}, err
		}
		check.SampledAccounts = append(check.SampledAccounts, accountCheck)
		if !accountCheck.Healthy() {
			check.DriftedAccounts++
		}
	}
	if !check.Healthy() || check.DriftedAccounts > 0 {
		service.logOperation(ctx, OperationLog{
			Operation: operationReconcile,
			Amount:    check.Drift,
			Error:     ErrReconciliationDrift,
		})
	}
	return check, nil
}
