package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

type InMemoryLedgerSuite struct {
	suite.Suite
	store *InMemory
}

func (s *InMemoryLedgerSuite) SetupTest() {
	s.store = NewInMemory()
}

func TestInMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, new(InMemoryLedgerSuite))
}

func (s *InMemoryLedgerSuite) TestCreditAndBalances() {
	s.Run("credit lands in the named bucket", func() {
		s.Require().NoError(s.store.Credit(context.Background(), "agent-1", BucketPending, domain.NGN(250000)))

		bal, err := s.store.Balances(context.Background(), "agent-1")
		s.Require().NoError(err)
		s.Equal(int64(250000), bal.Pending.Amount)
		s.True(bal.Locked.IsZero())
		s.True(bal.Certified.IsZero())
		s.True(bal.Withdrawable.IsZero())
	})

	s.Run("unknown agent has four empty buckets", func() {
		bal, err := s.store.Balances(context.Background(), "agent-unknown")
		s.Require().NoError(err)
		s.True(bal.Total().IsZero())
	})

	s.Run("currency is pinned on first credit", func() {
		s.Require().NoError(s.store.Credit(context.Background(), "agent-2", BucketPending, domain.NGN(100)))
		err := s.store.Credit(context.Background(), "agent-2", BucketPending, domain.USD(100))
		s.Error(err)
	})

	s.Run("invalid bucket is rejected", func() {
		err := s.store.Credit(context.Background(), "agent-3", Bucket("imaginary"), domain.NGN(100))
		s.Error(err)
	})
}

func (s *InMemoryLedgerSuite) TestMove() {
	s.Run("move conserves the total", func() {
		s.Require().NoError(s.store.Credit(context.Background(), "agent-4", BucketPending, domain.NGN(250000)))
		s.Require().NoError(s.store.Move(context.Background(), "agent-4", BucketPending, BucketLocked, domain.NGN(250000)))

		bal, err := s.store.Balances(context.Background(), "agent-4")
		s.Require().NoError(err)
		s.True(bal.Pending.IsZero())
		s.Equal(int64(250000), bal.Locked.Amount)
		s.Equal(int64(250000), bal.Total().Amount)
	})

	s.Run("overdrawing a bucket reports ErrInsufficientFunds", func() {
		s.Require().NoError(s.store.Credit(context.Background(), "agent-5", BucketPending, domain.NGN(100)))
		err := s.store.Move(context.Background(), "agent-5", BucketPending, BucketCertified, domain.NGN(200))
		s.ErrorIs(err, sentinel.ErrInsufficientFunds)

		// The failed move must not mutate either bucket.
		bal, balErr := s.store.Balances(context.Background(), "agent-5")
		s.Require().NoError(balErr)
		s.Equal(int64(100), bal.Pending.Amount)
		s.True(bal.Certified.IsZero())
	})
}

func (s *InMemoryLedgerSuite) TestDebit() {
	s.Run("debit removes funds from the ledger entirely", func() {
		s.Require().NoError(s.store.Credit(context.Background(), "agent-6", BucketLocked, domain.NGN(250000)))
		s.Require().NoError(s.store.Debit(context.Background(), "agent-6", BucketLocked, domain.NGN(250000)))

		bal, err := s.store.Balances(context.Background(), "agent-6")
		s.Require().NoError(err)
		s.True(bal.Total().IsZero())
	})

	s.Run("debit below zero reports ErrInsufficientFunds", func() {
		err := s.store.Debit(context.Background(), "agent-7", BucketPending, domain.NGN(1))
		s.ErrorIs(err, sentinel.ErrInsufficientFunds)
	})
}

func (s *InMemoryLedgerSuite) TestConcurrentConservation() {
	// Hammer one account with moves from many goroutines; the
	// total must never change and no bucket may go negative.
	const credited = 1000
	s.Require().NoError(s.store.Credit(context.Background(), "agent-8", BucketPending, domain.NGN(credited)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.Move(context.Background(), "agent-8", BucketPending, BucketLocked, domain.NGN(10))
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.Move(context.Background(), "agent-8", BucketLocked, BucketCertified, domain.NGN(10))
		}()
	}
	wg.Wait()

	bal, err := s.store.Balances(context.Background(), "agent-8")
	s.Require().NoError(err)
	s.Equal(int64(credited), bal.Total().Amount)
	s.GreaterOrEqual(bal.Pending.Amount, int64(0))
	s.GreaterOrEqual(bal.Locked.Amount, int64(0))
	s.GreaterOrEqual(bal.Certified.Amount, int64(0))
}
