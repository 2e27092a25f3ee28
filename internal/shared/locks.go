package shared

// ReconcileLockKey builds the redis key guarding a reconciliation run.
func ReconcileLockKey() string {
	return "reconcile:run:lock"
}

// ReconcileReportKey builds the redis key storing the last run report.
func ReconcileReportKey() string {
	return "reconcile:run:last"
}
