package settlement

import (
	"sync"

	"inspekta/pkg/domain"
)

// bookingLocks hands out one mutex per booking. Compound transitions (claim
// plus ledger move, cancel plus debit, sweep plus move) run under the
// booking's mutex so the ledger can never observe a half-applied transition.
// Locks guard only in-memory mutation; no network call happens while held.
// Entries are never removed: the set of bookings is append-only and each
// entry is a single mutex.
type bookingLocks struct {
	mu    sync.Mutex
	locks map[domain.BookingID]*sync.Mutex
}

func newBookingLocks() *bookingLocks {
	return &bookingLocks{locks: make(map[domain.BookingID]*sync.Mutex)}
}

func (l *bookingLocks) lock(id domain.BookingID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
