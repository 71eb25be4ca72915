package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
)

type LedgerServiceSuite struct {
	suite.Suite
	service *Service
}

func (s *LedgerServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(NewInMemory(), WithLogger(logger))
	s.Require().NoError(err)
	s.service = svc
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) TestNew() {
	s.Run("rejects nil store", func() {
		_, err := New(nil)
		s.Error(err)
	})
}

func (s *LedgerServiceSuite) TestPromote() {
	s.Run("moves certified funds to withdrawable", func() {
		s.Require().NoError(s.service.Credit(context.Background(), "agent-1", BucketCertified, domain.NGN(500000)))
		s.Require().NoError(s.service.Promote(context.Background(), "agent-1", domain.NGN(200000)))

		bal, err := s.service.Balances(context.Background(), "agent-1")
		s.Require().NoError(err)
		s.Equal(int64(300000), bal.Certified.Amount)
		s.Equal(int64(200000), bal.Withdrawable.Amount)
	})

	s.Run("promoting more than certified is a conflict", func() {
		s.Require().NoError(s.service.Credit(context.Background(), "agent-2", BucketCertified, domain.NGN(100)))
		err := s.service.Promote(context.Background(), "agent-2", domain.NGN(200))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("zero and negative amounts are invalid input", func() {
		s.True(dErrors.HasCode(
			s.service.Promote(context.Background(), "agent-3", domain.NGN(0)),
			dErrors.CodeInvalidInput))
		s.True(dErrors.HasCode(
			s.service.Promote(context.Background(), "agent-3", domain.NGN(-5)),
			dErrors.CodeInvalidInput))
	})

	s.Run("promotion never touches pending or locked", func() {
		s.Require().NoError(s.service.Credit(context.Background(), "agent-4", BucketPending, domain.NGN(100)))
		s.Require().NoError(s.service.Credit(context.Background(), "agent-4", BucketLocked, domain.NGN(100)))
		err := s.service.Promote(context.Background(), "agent-4", domain.NGN(50))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		bal, balErr := s.service.Balances(context.Background(), "agent-4")
		s.Require().NoError(balErr)
		s.Equal(int64(100), bal.Pending.Amount)
		s.Equal(int64(100), bal.Locked.Amount)
	})
}

func (s *LedgerServiceSuite) TestInternalMapping() {
	s.Run("insufficient funds on move surfaces as internal", func() {
		// Outside of promotion, a shortfall means the engine's bookkeeping
		// went wrong; callers get a generic internal error.
		err := s.service.Move(context.Background(), "agent-5", BucketPending, BucketCertified, domain.NGN(100))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
