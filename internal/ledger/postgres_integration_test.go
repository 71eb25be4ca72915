//go:build integration

package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"inspekta/internal/ledger"
	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
	"inspekta/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.Postgres
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "agent_ledgers")
	s.Require().NoError(err)
}

func newAgent() domain.AgentRef {
	return domain.AgentRef("agent-" + uuid.NewString())
}

func (s *PostgresLedgerSuite) TestCreditAndBalances() {
	ctx := context.Background()

	s.Run("credit accumulates in one bucket", func() {
		agent := newAgent()
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(250000)))
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(250000)))

		bal, err := s.store.Balances(ctx, agent)
		s.Require().NoError(err)
		s.Equal(domain.NGN(500000), bal.Pending)
		s.True(bal.Locked.IsZero())
	})

	s.Run("unknown agent reads as zero everywhere", func() {
		bal, err := s.store.Balances(ctx, newAgent())
		s.Require().NoError(err)
		s.True(bal.Total().IsZero())
	})

	s.Run("account currency is pinned by the first credit", func() {
		agent := newAgent()
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(100)))
		s.Error(s.store.Credit(ctx, agent, ledger.BucketPending, domain.USD(100)))

		bal, err := s.store.Balances(ctx, agent)
		s.Require().NoError(err)
		s.Equal(domain.NGN(100), bal.Pending)
	})
}

func (s *PostgresLedgerSuite) TestMoveAndDebit() {
	ctx := context.Background()

	s.Run("move conserves the total", func() {
		agent := newAgent()
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(250000)))
		s.Require().NoError(s.store.Move(ctx, agent, ledger.BucketPending, ledger.BucketCertified, domain.NGN(250000)))

		bal, err := s.store.Balances(ctx, agent)
		s.Require().NoError(err)
		s.True(bal.Pending.IsZero())
		s.Equal(domain.NGN(250000), bal.Certified)
		s.Equal(domain.NGN(250000), bal.Total())
	})

	s.Run("move fails without funds and leaves nothing behind", func() {
		agent := newAgent()
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(100)))

		err := s.store.Move(ctx, agent, ledger.BucketPending, ledger.BucketLocked, domain.NGN(250000))
		s.ErrorIs(err, sentinel.ErrInsufficientFunds)

		bal, err := s.store.Balances(ctx, agent)
		s.Require().NoError(err)
		s.Equal(domain.NGN(100), bal.Pending)
		s.True(bal.Locked.IsZero())
	})

	s.Run("debit removes funds from one bucket", func() {
		agent := newAgent()
		s.Require().NoError(s.store.Credit(ctx, agent, ledger.BucketPending, domain.NGN(250000)))
		s.Require().NoError(s.store.Debit(ctx, agent, ledger.BucketPending, domain.NGN(250000)))

		bal, err := s.store.Balances(ctx, agent)
		s.Require().NoError(err)
		s.True(bal.Total().IsZero())
	})

	s.Run("debit of an unknown agent reports insufficient funds", func() {
		err := s.store.Debit(ctx, newAgent(), ledger.BucketPending, domain.NGN(1))
		s.ErrorIs(err, sentinel.ErrInsufficientFunds)
	})
}

// TestConcurrentConservation hammers one account from many goroutines and
// checks that money is neither created nor destroyed by the guarded updates.
func (s *PostgresLedgerSuite) TestConcurrentConservation() {
	ctx := context.Background()
	agent := newAgent()
	const workers = 40
	unit := domain.NGN(1000)

	g := new(errgroup.Group)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			if err := s.store.Credit(ctx, agent, ledger.BucketPending, unit); err != nil {
				return err
			}
			if i%2 == 0 {
				// Moves may lose the race to credits landing later; only
				// funded moves count, and those must conserve.
				_ = s.store.Move(ctx, agent, ledger.BucketPending, ledger.BucketLocked, unit)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	bal, err := s.store.Balances(ctx, agent)
	s.Require().NoError(err)
	s.Equal(domain.NGN(int64(workers)*1000), bal.Total())
	s.False(bal.Pending.IsNegative())
	s.False(bal.Locked.IsNegative())
}
