// Package placementlog defines the audit trail written for every order
// placement attempt.
//
// Each attempt appends exactly one entry, whether the order was committed or
// rejected. Entries carry the trace and span ids of the request so a row can
// be correlated with the distributed trace that produced it.
package placementlog

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Latest when no entry matches.
var ErrNotFound = errors.New("placementlog: entry not found")

// Status is the outcome of a placement attempt.
type Status string

const (
	StatusCommitted Status = "COMMITTED"
	StatusRejected  Status = "REJECTED"
)

// Entry is a single row in the placement_logs table.
type Entry struct {
	// OrderID is empty for rejected attempts.
	OrderID    string
	CustomerID string
	Status     Status

	// IdempotencyKey is the X-Idempotency-Key the client sent, if any.
	IdempotencyKey string

	// Reason is the error kind of a rejected attempt, e.g. INSUFFICIENT_STOCK.
	Reason string

	// Detail is the full error message of a rejected attempt.
	Detail string

	// Payload is the JSON-serialised request.
	Payload string

	TraceID string
	SpanID  string

	RecordedAt time.Time
}
