package index

// RunIndex defines the interface for run-report storage. Consumers should
// depend on this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type RunIndex interface {
	RecordBatch(row BatchRow) error
	GetBatch(name string) (*BatchRow, error)
	ListBatches(limit, offset int) ([]BatchRow, int, error)
	RecordQuarantine(row QuarantineRow) error
	ListQuarantine(limit int) ([]QuarantineRow, error)
	Close() error
}

// Verify *DB satisfies RunIndex at compile time.
var _ RunIndex = (*DB)(nil)
