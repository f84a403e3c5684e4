package seed

import "fmt"

// SeedError reports where a seeding run failed and what had been persisted
// up to that point. Nothing is rolled back.
type SeedError struct {
	// Phase is the phase that failed.
	Phase Phase

	// Batch is the 1-based batch index within the phase, or 0 when the
	// failure was not tied to a batch.
	Batch int

	// Counts is what was persisted before the failure.
	Counts Counts

	// Err is the underlying cause.
	Err error
}

func (e *SeedError) Error() string {
	where := string(e.Phase)
	if e.Batch > 0 {
		where = fmt.Sprintf("%s batch %d", e.Phase, e.Batch)
	}
	return fmt.Sprintf(
		"seeding failed in %s after persisting %d customers, %d products, %d orders (%d order lines): %v",
		where, e.Counts.Customers, e.Counts.Products, e.Counts.Orders, e.Counts.OrderLines, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }
