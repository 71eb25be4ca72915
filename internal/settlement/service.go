package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"inspekta/internal/audit"
	"inspekta/internal/booking/code"
	"inspekta/internal/booking/models"
	bookingstore "inspekta/internal/booking/store"
	"inspekta/internal/creditpass"
	"inspekta/internal/ledger"
	"inspekta/internal/settlement/metrics"
	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
	"inspekta/pkg/platform/sentinel"
)

// maxCodeAttempts bounds redemption-code regeneration on collision. With a
// 27-character alphabet and four positions the active code space is ~531k;
// five attempts is far beyond what a realistic active set can exhaust.
const maxCodeAttempts = 5

// Service is the settlement engine. All financial movement and credit
// spending flows through it; stores and the ledger are never handed to
// callers directly.
type Service struct {
	bookings bookingstore.Store
	ledger   *ledger.Service
	passes   *creditpass.Service
	payments PaymentProvider

	notifier Notifier
	audit    *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    Clock
	tracer   trace.Tracer

	// fee is the standard mobilization fee charged per inspection.
	fee domain.Money

	// locks serializes compound transitions per booking (claim + ledger
	// move, cancel + debit, sweep + move).
	locks *bookingLocks
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(
	bookings bookingstore.Store,
	ledgerSvc *ledger.Service,
	passes *creditpass.Service,
	payments PaymentProvider,
	fee domain.Money,
	opts ...Option,
) (*Service, error) {
	if bookings == nil {
		return nil, fmt.Errorf("booking store is required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if passes == nil {
		return nil, fmt.Errorf("credit pass service is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if !fee.IsPositive() {
		return nil, fmt.Errorf("mobilization fee must be positive")
	}

	svc := &Service{
		bookings: bookings,
		ledger:   ledgerSvc,
		passes:   passes,
		payments: payments,
		fee:      fee,
		logger:   slog.Default(),
		clock:    time.Now,
		tracer:   otel.Tracer("inspekta/internal/settlement"),
		locks:    newBookingLocks(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateBooking consumes one pass credit, captures the mobilization fee
// (unless this is the pass's fee-free first use, which the platform
// subsidises), and creates a Scheduled booking with its fee in the pending
// bucket. The steps compensate each other on failure: no partial outcome
// survives an error.
func (s *Service) CreateBooking(
	ctx context.Context,
	client domain.ClientRef,
	agent domain.AgentRef,
	property domain.PropertyRef,
	inspectionAt time.Time,
) (*models.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.CreateBooking")
	defer span.End()

	if err := client.Validate(); err != nil {
		return nil, err
	}
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := property.Validate(); err != nil {
		return nil, err
	}
	now := s.clock()
	if !inspectionAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "inspection time must be in the future")
	}

	feeFree, err := s.passes.Consume(ctx, client)
	if err != nil {
		return nil, err
	}

	bookingID := domain.NewBookingID()
	captured := false
	if !feeFree {
		if err := s.payments.Capture(ctx, client, s.fee, bookingID); err != nil {
			s.rollbackCredit(ctx, client)
			s.logger.ErrorContext(ctx, "fee capture failed",
				"client", string(client), "error", err.Error())
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to capture mobilization fee")
		}
		captured = true
	}

	if err := s.ledger.Credit(ctx, agent, ledger.BucketPending, s.fee); err != nil {
		s.compensateCreate(ctx, client, agent, bookingID, captured, false)
		return nil, err
	}

	b, err := s.createWithFreshCode(ctx, bookingID, client, agent, property, inspectionAt, feeFree, now)
	if err != nil {
		s.compensateCreate(ctx, client, agent, bookingID, captured, true)
		if errors.Is(err, bookingstore.ErrAlreadyBooked) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "client already has an active booking for this property")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create booking")
	}

	if s.metrics != nil {
		s.metrics.IncrementBookingsCreated()
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionBookingCreated,
		BookingID: b.ID,
		ClientRef: b.ClientRef,
		AgentRef:  b.AgentRef,
		Amount:    b.Fee,
	})
	s.notify(ctx, NotifyBookingCreated, b)
	s.logger.InfoContext(ctx, "booking created",
		"booking_id", b.ID.String(),
		"client", string(client),
		"agent", string(agent),
		"fee_free", feeFree,
		"inspection_at", inspectionAt,
	)
	return b, nil
}

// createWithFreshCode inserts the booking, regenerating the redemption code
// on collision against the active code set.
func (s *Service) createWithFreshCode(
	ctx context.Context,
	id domain.BookingID,
	client domain.ClientRef,
	agent domain.AgentRef,
	property domain.PropertyRef,
	inspectionAt time.Time,
	feeFree bool,
	now time.Time,
) (*models.Booking, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		c, err := code.New()
		if err != nil {
			return nil, err
		}
		b := &models.Booking{
			ID:           id,
			Code:         c,
			ClientRef:    client,
			AgentRef:     agent,
			PropertyRef:  property,
			InspectionAt: inspectionAt,
			Fee:          s.fee,
			FeeFree:      feeFree,
			FeeBucket:    models.FeeBucketPending,
			CreatedAt:    now,
		}
		err = s.bookings.Create(ctx, b, now)
		if err == nil {
			return b, nil
		}
		if errors.Is(err, bookingstore.ErrCodeTaken) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("exhausted %d redemption code attempts", maxCodeAttempts)
}

// VerifyCode redeems a booking code: exactly one of any number of concurrent
// attempts on the same code succeeds and moves the fee into certified. The
// per-booking lock makes the ledger move and the CodeUsed flip one atomic
// transition; the ledger moves first so a failed move leaves nothing mutated.
func (s *Service) VerifyCode(ctx context.Context, rawCode string) (*models.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.VerifyCode")
	defer span.End()

	normalized := code.Normalize(rawCode)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "redemption code is required")
	}

	b, err := s.bookings.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no booking holds that code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up code")
	}

	unlock := s.locks.lock(b.ID)
	defer unlock()

	// Re-read under the lock: the snapshot above may predate another
	// caller's claim or a sweep.
	b, err = s.bookings.FindByCode(ctx, normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up code")
	}
	now := s.clock()
	if err := b.Claimable(now); err != nil {
		return nil, claimError(err)
	}

	source := ledger.Bucket(b.FeeBucket)
	if source != ledger.BucketPending && source != ledger.BucketLocked {
		s.reportInvariant(ctx, "active booking fee in unexpected bucket",
			"booking_id", b.ID.String(), "bucket", string(b.FeeBucket))
		return nil, dErrors.New(dErrors.CodeInternal, "settlement failed")
	}
	if err := s.ledger.Move(ctx, b.AgentRef, source, ledger.BucketCertified, b.Fee); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementInvariantViolations()
		}
		return nil, err
	}
	claimed, err := s.bookings.ClaimCode(ctx, normalized, now)
	if err != nil {
		// The claim re-checks what we just checked under the same lock, so
		// a failure here means the stores disagree. Put the money back and
		// alert.
		if moveBack := s.ledger.Move(ctx, b.AgentRef, ledger.BucketCertified, source, b.Fee); moveBack != nil {
			s.reportInvariant(ctx, "failed to unwind certified move after claim failure",
				"booking_id", b.ID.String(), "error", moveBack.Error())
		}
		s.reportInvariant(ctx, "code claim failed after ledger move",
			"booking_id", b.ID.String(), "error", err.Error())
		return nil, dErrors.New(dErrors.CodeInternal, "settlement failed")
	}

	completed := *claimed
	completed.CodeUsed = true
	completed.FeeBucket = models.FeeBucketCertified

	if s.metrics != nil {
		s.metrics.IncrementCodesVerified()
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionCodeVerified,
		BookingID: completed.ID,
		ClientRef: completed.ClientRef,
		AgentRef:  completed.AgentRef,
		Amount:    completed.Fee,
	})
	s.notify(ctx, NotifyBookingCompleted, &completed)
	s.logger.InfoContext(ctx, "redemption code verified",
		"booking_id", completed.ID.String(),
		"agent", string(completed.AgentRef),
	)
	return &completed, nil
}

// CancelBooking records a cancellation and settles the fee. Client
// cancellations are free only while the booking is still Scheduled; agent
// cancellations work in Scheduled or Locked, refund the client from the
// platform pool, and restore the spent pass credit.
func (s *Service) CancelBooking(ctx context.Context, id domain.BookingID, by models.CancelActor) error {
	ctx, span := s.tracer.Start(ctx, "settlement.CancelBooking")
	defer span.End()

	if by != models.CancelActorClient && by != models.CancelActorAgent {
		return dErrors.New(dErrors.CodeInvalidInput, "cancellation actor must be client or agent")
	}
	if id.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "booking id is required")
	}

	unlock := s.locks.lock(id)

	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		unlock()
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "booking not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load booking")
	}
	now := s.clock()
	if err := b.Cancellable(by, now); err != nil {
		unlock()
		return cancelError(err)
	}

	source := ledger.Bucket(b.FeeBucket)
	if err := s.ledger.Debit(ctx, b.AgentRef, source, b.Fee); err != nil {
		unlock()
		if s.metrics != nil {
			s.metrics.IncrementInvariantViolations()
		}
		return err
	}
	cancelled, err := s.bookings.Cancel(ctx, id, by, now)
	if err != nil {
		// Same-lock re-check failed: stores disagree. Re-credit and alert.
		if creditBack := s.ledger.Credit(ctx, b.AgentRef, source, b.Fee); creditBack != nil {
			s.reportInvariant(ctx, "failed to unwind debit after cancel failure",
				"booking_id", id.String(), "error", creditBack.Error())
		}
		unlock()
		s.reportInvariant(ctx, "booking cancel failed after ledger debit",
			"booking_id", id.String(), "error", err.Error())
		return dErrors.New(dErrors.CodeInternal, "cancellation failed")
	}
	unlock()

	// Disbursements and credit restoration happen outside the lock: they
	// talk to external collaborators and must not stall other transitions.
	s.settleCancellation(ctx, cancelled, by)

	if s.metrics != nil {
		s.metrics.IncrementCancellations(string(by))
	}
	final := *cancelled
	final.CancelledBy = by
	final.FeeBucket = models.FeeBucketNone
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionBookingCancelled,
		BookingID: final.ID,
		ClientRef: final.ClientRef,
		AgentRef:  final.AgentRef,
		Actor:     by,
		Amount:    final.Fee,
	})
	s.notify(ctx, NotifyBookingCancelled, &final)
	s.logger.InfoContext(ctx, "booking cancelled",
		"booking_id", id.String(),
		"by", string(by),
	)
	return nil
}

// settleCancellation runs the external side effects of a recorded
// cancellation. The state transition is already committed; failures here are
// operational alerts, not rollbacks.
func (s *Service) settleCancellation(ctx context.Context, b *models.Booking, by models.CancelActor) {
	switch by {
	case models.CancelActorClient:
		// Fee-free bookings captured nothing, so there is nothing to refund.
		if !b.FeeFree {
			if err := s.payments.Refund(ctx, b.ClientRef, b.Fee, b.ID); err != nil {
				s.logger.ErrorContext(ctx, "client refund failed",
					"booking_id", b.ID.String(), "error", err.Error())
			}
		}
	case models.CancelActorAgent:
		if !b.FeeFree {
			if err := s.payments.RefundFromPool(ctx, b.ClientRef, b.Fee, b.ID); err != nil {
				s.logger.ErrorContext(ctx, "platform pool refund failed",
					"booking_id", b.ID.String(), "error", err.Error())
			}
		}
		err := s.passes.Restore(ctx, b.ClientRef)
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.IncrementCreditsRestored()
			}
			s.emitAudit(ctx, audit.Event{
				Action:    audit.ActionCreditRestored,
				BookingID: b.ID,
				ClientRef: b.ClientRef,
				AgentRef:  b.AgentRef,
			})
		case errors.Is(err, sentinel.ErrAtCapacity):
			// Already full: restoring past the cap is a no-op by contract.
		default:
			s.logger.ErrorContext(ctx, "credit restoration failed",
				"booking_id", b.ID.String(), "error", err.Error())
		}
	}
}

// Balances returns the agent's ledger snapshot.
func (s *Service) Balances(ctx context.Context, agent domain.AgentRef) (ledger.Balances, error) {
	if err := agent.Validate(); err != nil {
		return ledger.Balances{}, err
	}
	return s.ledger.Balances(ctx, agent)
}

// PassStatus reports the client's effective remaining credits and expiry.
func (s *Service) PassStatus(ctx context.Context, client domain.ClientRef) (remaining int, expiresAt time.Time, err error) {
	return s.passes.Status(ctx, client)
}

// IssuePass creates a fresh credit pass for the client.
func (s *Service) IssuePass(ctx context.Context, client domain.ClientRef, totalCredits int, validity time.Duration) (*creditpass.CreditPass, error) {
	pass, err := s.passes.Issue(ctx, client, totalCredits, validity)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionPassIssued,
		ClientRef: client,
	})
	return pass, nil
}

// Promote moves audit-cleared funds certified → withdrawable on behalf of the
// external audit collaborator. The engine never decides when funds are clean.
func (s *Service) Promote(ctx context.Context, agent domain.AgentRef, amount domain.Money) error {
	ctx, span := s.tracer.Start(ctx, "settlement.Promote")
	defer span.End()

	if err := agent.Validate(); err != nil {
		return err
	}
	if err := s.ledger.Promote(ctx, agent, amount); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementFundsPromoted()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionFundsPromoted,
		AgentRef: agent,
		Amount:   amount,
	})
	return nil
}

// History returns the append-only audit trail for a booking.
func (s *Service) History(ctx context.Context, id domain.BookingID) ([]audit.Event, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx, id)
}

// rollbackCredit returns a just-consumed credit after a later step failed.
func (s *Service) rollbackCredit(ctx context.Context, client domain.ClientRef) {
	if err := s.passes.Restore(ctx, client); err != nil && !errors.Is(err, sentinel.ErrAtCapacity) {
		s.reportInvariant(ctx, "failed to roll back credit consumption",
			"client", string(client), "error", err.Error())
	}
}

// compensateCreate unwinds the earlier steps of a failed CreateBooking:
// undo the pending credit if it landed, refund the capture if one happened,
// and return the consumed pass credit.
func (s *Service) compensateCreate(ctx context.Context, client domain.ClientRef, agent domain.AgentRef, id domain.BookingID, captured, credited bool) {
	if credited {
		if err := s.ledger.Debit(ctx, agent, ledger.BucketPending, s.fee); err != nil {
			s.reportInvariant(ctx, "failed to unwind pending credit during rollback",
				"agent", string(agent), "error", err.Error())
		}
	}
	if captured {
		if err := s.payments.Refund(ctx, client, s.fee, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to refund capture during rollback",
				"client", string(client), "error", err.Error())
		}
	}
	s.rollbackCredit(ctx, client)
}

func (s *Service) notify(ctx context.Context, kind NotificationKind, b *models.Booking) {
	if s.notifier == nil {
		return
	}
	n := Notification{
		Kind:         kind,
		BookingID:    b.ID,
		ClientRef:    b.ClientRef,
		AgentRef:     b.AgentRef,
		PropertyRef:  b.PropertyRef,
		InspectionAt: b.InspectionAt,
		OccurredAt:   s.clock(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			"kind", string(kind), "booking_id", b.ID.String(), "error", err.Error())
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = s.clock()
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed",
			"action", string(event.Action), "error", err.Error())
	}
}

func (s *Service) reportInvariant(ctx context.Context, msg string, args ...any) {
	if s.metrics != nil {
		s.metrics.IncrementInvariantViolations()
	}
	s.logger.ErrorContext(ctx, msg, args...)
}

func claimError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "redemption code already used")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "booking was cancelled")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeConflict, "booking has expired")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
}

func cancelError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "booking is inside the 24-hour lock window")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "booking is not cancellable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "cancellation failed")
}
