package datagen

import (
	"github.com/pgEdge/pgedge-storebench/internal/logging"
)

// ProgressReporter tracks and reports data generation progress.
type ProgressReporter struct {
	entity           string
	totalRows        int64
	currentRow       int64
	progressInterval int64
}

// NewProgressReporter creates a new progress reporter. A non-positive
// interval disables intermediate reports.
func NewProgressReporter(entity string, totalRows int64, interval int64) *ProgressReporter {
	return &ProgressReporter{
		entity:           entity,
		totalRows:        totalRows,
		progressInterval: interval,
	}
}

// Update updates the progress and logs if necessary. It reports whether an
// interval boundary was crossed.
func (p *ProgressReporter) Update(rowsInserted int64) bool {
	oldRow := p.currentRow
	p.currentRow += rowsInserted

	if p.progressInterval <= 0 {
		return false
	}

	// Check if we crossed a progress interval
	if p.currentRow/p.progressInterval > oldRow/p.progressInterval {
		var pct float64
		if p.totalRows > 0 {
			pct = float64(p.currentRow) / float64(p.totalRows) * 100
		}
		logging.Info().
			Str("entity", p.entity).
			Int64("rows", p.currentRow).
			Int64("total", p.totalRows).
			Float64("percent", pct).
			Msg("Seeding data")
		return true
	}
	return false
}

// Rows returns the number of rows reported so far.
func (p *ProgressReporter) Rows() int64 {
	return p.currentRow
}

// Done logs completion.
func (p *ProgressReporter) Done() {
	logging.Info().
		Str("entity", p.entity).
		Int64("rows", p.currentRow).
		Msg("Entity complete")
}
