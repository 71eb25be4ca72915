// Package creditpass tracks each client's prepaid inspection-credit pool.
// Expiry is evaluated lazily on read, like the booking phase: past ExpiresAt
// the effective remaining is zero regardless of the stored counter.
package creditpass

import (
	"time"

	"inspekta/pkg/domain"
)

// CreditPass is one client's prepaid credit pool. Consumed counts total
// consumptions ever made and is never decremented: the fee-free flag belongs
// to consumption order, so refund-driven restores must not reset it.
type CreditPass struct {
	ID           domain.PassID
	ClientRef    domain.ClientRef
	TotalCredits int
	Remaining    int
	Consumed     int
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// ExpiredAt reports whether the pass has lapsed at the given instant.
func (p *CreditPass) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// RemainingAt is the effective credit count at the given instant.
func (p *CreditPass) RemainingAt(now time.Time) int {
	if p.ExpiredAt(now) {
		return 0
	}
	return p.Remaining
}
