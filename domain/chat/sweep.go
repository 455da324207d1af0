package chat

// SweepReport summarizes one eviction run.
type SweepReport struct {
	// Evicted lists every participant selected as stale, whether or not its deletion succeeded.
	Evicted []string
	Deleted int64
}
