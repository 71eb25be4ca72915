// Package ledger tracks per-agent mobilization-fee balances across the four
// settlement buckets. Buckets are mutated only by the settlement engine; the
// HTTP layer gets read-only snapshots.
package ledger

import "inspekta/pkg/domain"

// Bucket names a settlement stage for funds held on behalf of an agent.
type Bucket string

const (
	// BucketPending holds fees for bookings still freely cancellable.
	BucketPending Bucket = "pending"
	// BucketLocked holds fees for bookings inside the 24h lock window.
	BucketLocked Bucket = "locked"
	// BucketCertified holds fees for dual-party-confirmed inspections.
	BucketCertified Bucket = "certified"
	// BucketWithdrawable holds audit-cleared funds payable to the agent.
	BucketWithdrawable Bucket = "withdrawable"
)

// Valid reports whether b names one of the four settlement buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketPending, BucketLocked, BucketCertified, BucketWithdrawable:
		return true
	}
	return false
}

// Balances is a point-in-time snapshot of one agent's buckets.
type Balances struct {
	Pending      domain.Money `json:"pending"`
	Locked       domain.Money `json:"locked"`
	Certified    domain.Money `json:"certified"`
	Withdrawable domain.Money `json:"withdrawable"`
}

// Total sums all four buckets. Used by the conservation checks.
func (b Balances) Total() domain.Money {
	return b.Pending.Add(b.Locked).Add(b.Certified).Add(b.Withdrawable)
}
