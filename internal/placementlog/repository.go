package placementlog

import "context"

// Repository persists placement log entries. The table is append-only;
// Save never updates an existing row.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error

	// Latest returns the most recent entry for a customer, or ErrNotFound.
	Latest(ctx context.Context, customerID string) (*Entry, error)

	// ListByCustomer returns up to limit entries for a customer, newest first.
	// A non-positive limit selects the implementation's default.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*Entry, error)
}
