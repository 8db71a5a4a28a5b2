package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceViewsRefresh refreshes the materialized balance views the
	// outstanding aggregator reads from.
	TaskBalanceViewsRefresh = "finance:refresh_balance_views"
	// TaskCreditScan re-checks that every payment is fully accounted for
	// by its allocations and credit entries.
	TaskCreditScan = "finance:credit_scan"
)

// NewBalanceViewsRefreshTask constructs an Asynq task.
func NewBalanceViewsRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskBalanceViewsRefresh, nil)
}

// NewCreditScanTask constructs an Asynq task.
func NewCreditScanTask() *asynq.Task {
	return asynq.NewTask(TaskCreditScan, nil)
}
