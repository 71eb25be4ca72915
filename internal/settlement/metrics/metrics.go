package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BookingsCreated     prometheus.Counter
	CodesVerified       prometheus.Counter
	Cancellations       *prometheus.CounterVec
	CreditsRestored     prometheus.Counter
	FeesLocked          prometheus.Counter
	FundsPromoted       prometheus.Counter
	InvariantViolations prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		BookingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_bookings_created_total",
			Help: "Total number of inspection bookings created",
		}),
		CodesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_codes_verified_total",
			Help: "Total number of redemption codes successfully verified",
		}),
		Cancellations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspekta_cancellations_total",
			Help: "Total number of booking cancellations by initiating actor",
		}, []string{"actor"}),
		CreditsRestored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_credits_restored_total",
			Help: "Total number of pass credits restored after agent cancellations",
		}),
		FeesLocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_fees_locked_total",
			Help: "Total number of fees moved pending to locked by the sweeper",
		}),
		FundsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_funds_promoted_total",
			Help: "Total number of certified-to-withdrawable promotions",
		}),
		InvariantViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspekta_ledger_invariant_violations_total",
			Help: "Total number of ledger operations that violated a balance invariant",
		}),
	}
}

func (m *Metrics) IncrementBookingsCreated() { m.BookingsCreated.Inc() }
func (m *Metrics) IncrementCodesVerified()   { m.CodesVerified.Inc() }
func (m *Metrics) IncrementCancellations(actor string) {
	m.Cancellations.WithLabelValues(actor).Inc()
}
func (m *Metrics) IncrementCreditsRestored()     { m.CreditsRestored.Inc() }
func (m *Metrics) IncrementFeesLocked()          { m.FeesLocked.Inc() }
func (m *Metrics) IncrementFundsPromoted()       { m.FundsPromoted.Inc() }
func (m *Metrics) IncrementInvariantViolations() { m.InvariantViolations.Inc() }
