package stats

// Instrument names used by the tracking subsystem. Kept in one place so
// dashboards don't chase renames through the codebase.
const (
	// Counter: jobs submitted to the scheduler.
	JobSubmits = "jobSubmits"

	// Counter: submissions whose confirmation text could not be parsed.
	JobSubmitParseFailures = "jobSubmitParseFailures"

	// Counter: qstat polls issued.
	StatusPolls = "statusPolls"

	// Counter: polls that found no row for the tracked job.
	StatusPollsUnknown = "statusPollsUnknown"

	// Latency: time spent holding the status lock, listing included.
	StatusListLatency = "statusListLatency_ns"

	// Counter: accounting queries issued.
	AcctQueries = "acctQueries"

	// Counter: accounting retry budgets exhausted (pessimistic fail applied).
	AcctExhausted = "acctExhausted"

	// Counters: terminal classifications.
	JobsSucceeded = "jobsSucceeded"
	JobsFailed    = "jobsFailed"

	// Counter: staging directories reclaimed.
	StagingReclaims = "stagingReclaims"
)
