package coinledger

import "context"

// Economy assembles the coin-economy summary: circulation, exact mint/burn
// aggregates, daily flow, top spenders and earners, and the recent large and
// failed transaction lists.
func (service *Service) Economy(ctx context.Context) (Economy, error) {
	circulation, err := service.store.SumAllBalances(ctx)
	if err != nil {
		return Economy{}, err
	}
	aggregate, err := service.store.AggregateCompleted(ctx)
	if err != nil {
		return Economy{}, err
	}
	dailyFlow, err := service.store.DailyFlow(ctx, defaultDailyFlowDays)
	if err != nil {
		return Economy{}, err
	}
	topSpenders, err := service.store.TopAccountsBySource(ctx, SourceCallSpend, defaultTopActorLimit)
	if err != nil {
		return Economy{}, err
	}
	topEarners, err := service.store.TopAccountsBySource(ctx, SourceCallEarning, defaultTopActorLimit)
	if err != nil {
		return Economy{}, err
	}
	largeTransactions, err := service.store.ListLargeTransactions(ctx, service.largeAmountThreshold, defaultLargeTransactionLimit)
	if err != nil {
		return Economy{}, err
	}
	failedTransactions, err := service.store.ListFailedTransactions(ctx, defaultFailedTransactionList)
	if err != nil {
		return Economy{}, err
	}
	return Economy{
		TotalInCirculation:      circulation,
		AllTimeMinted:           aggregate.Minted,
		AllTimeMintedCount:      aggregate.MintedCount,
		AllTimeBurned:           aggregate.Burned,
		AllTimeBurnedCount:      aggregate.BurnedCount,
		DailyFlow:               dailyFlow,
		TopSpenders:             topSpenders,
		TopEarners:              topEarners,
		RecentLargeTransactions: largeTransactions,
		FailedTransactions:      failedTransactions,
	}, nil
}

// Calls returns one page of settled calls, optionally restricted to anomalous
// ones (zero-duration, very short, flagged, or refunded).
func (service *Service) Calls(ctx context.Context, page Page, anomaliesOnly bool) (CallPage, error) {
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Number <= 0 {
		page.Number = 1
	}
	calls, total, err := service.store.ListCalls(ctx, page, anomaliesOnly)
	if err != nil {
		return CallPage{}, err
	}
	return CallPage{
		Calls:      calls,
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages(total, page.Limit),
	}, nil
}

// ActionLog returns one page of the admin audit log, newest-first.
func (service *Service) ActionLog(ctx context.Context, page Page) (ActionPage, error) {
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Number <= 0 {
		page.Number = 1
	}
	actions, total, err := service.store.ListAdminActions(ctx, page)
	if err != nil {
		return ActionPage{}, err
	}
	return ActionPage{
		Actions:    actions,
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages(total, page.Limit),
	}, nil
}

// Counters returns the platform-health counters shown on the system screen.
func (service *Service) Counters(ctx context.Context) (PlatformCounters, error) {
	failedLastHour, err := service.store.CountFailedTransactionsSince(ctx, service.nowFn()-3600)
	if err != nil {
		return PlatformCounters{}, err
	}
	negativeBalances, err := service.store.CountNegativeBalances(ctx)
	if err != nil {
		return PlatformCounters{}, err
	}
	return PlatformCounters{
		FailedTransactionsLastHour: failedLastHour,
		NegativeBalanceAccounts:    negativeBalances,
	}, nil
}

func totalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return pages
}
