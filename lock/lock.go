// Package lock provides leased mutual exclusion for resources shared by
// cooperating processes. A lease bounds how long a holder can keep the lock:
// a holder that crashes without releasing is overtaken once its lease
// expires, so the resource self-heals without manual intervention.
package lock

// Lock is a leased mutual-exclusion primitive. Acquire blocks until the lock
// is held; Release gives it up. A holder must finish its critical section
// within the lease or risk being overtaken.
type Lock interface {
	Acquire() error
	Release() error
}
