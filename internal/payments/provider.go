// Package payments holds the capture/disbursement adapter. The production
// deployment points this at the marketplace's payment processor; the dev
// provider below records intents in the log and always succeeds.
package payments

import (
	"context"
	"log/slog"

	"inspekta/pkg/domain"
)

// LogProvider is the development payment adapter. Every capture and refund
// is acknowledged immediately and written to the structured log.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Capture(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error {
	p.logger.InfoContext(ctx, "payment capture",
		"client", string(client),
		"amount", amount.String(),
		"booking_id", bookingID.String(),
	)
	return nil
}

func (p *LogProvider) Refund(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error {
	p.logger.InfoContext(ctx, "payment refund",
		"client", string(client),
		"amount", amount.String(),
		"booking_id", bookingID.String(),
	)
	return nil
}

func (p *LogProvider) RefundFromPool(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error {
	p.logger.InfoContext(ctx, "platform pool refund",
		"client", string(client),
		"amount", amount.String(),
		"booking_id", bookingID.String(),
	)
	return nil
}
