//go:build integration

package creditpass_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"inspekta/internal/creditpass"
	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
	"inspekta/pkg/testutil/containers"
)

type PostgresPassSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *creditpass.Postgres
	now      time.Time
}

func TestPostgresPassSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPassSuite))
}

func (s *PostgresPassSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = creditpass.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresPassSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "credit_passes")
	s.Require().NoError(err)
}

func (s *PostgresPassSuite) newPass(client domain.ClientRef, credits int, validity time.Duration) *creditpass.CreditPass {
	return &creditpass.CreditPass{
		ID:           domain.NewPassID(),
		ClientRef:    client,
		TotalCredits: credits,
		Remaining:    credits,
		IssuedAt:     s.now,
		ExpiresAt:    s.now.Add(validity),
	}
}

func newClient() domain.ClientRef {
	return domain.ClientRef("client-" + uuid.NewString())
}

func (s *PostgresPassSuite) TestCreateAndFind() {
	ctx := context.Background()

	s.Run("round-trips a pass", func() {
		client := newClient()
		pass := s.newPass(client, 5, 30*24*time.Hour)
		s.Require().NoError(s.store.Create(ctx, pass, s.now))

		got, err := s.store.FindByClient(ctx, client)
		s.Require().NoError(err)
		s.Equal(pass.ID, got.ID)
		s.Equal(5, got.TotalCredits)
		s.Equal(5, got.Remaining)
		s.Equal(0, got.Consumed)
	})

	s.Run("a live pass cannot be replaced", func() {
		client := newClient()
		s.Require().NoError(s.store.Create(ctx, s.newPass(client, 5, 30*24*time.Hour), s.now))

		err := s.store.Create(ctx, s.newPass(client, 10, 30*24*time.Hour), s.now)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("an expired pass is replaced in place", func() {
		client := newClient()
		expired := s.newPass(client, 5, 30*24*time.Hour)
		expired.ExpiresAt = s.now.Add(-time.Hour)
		s.Require().NoError(s.store.Create(ctx, expired, s.now.Add(-60*24*time.Hour)))

		fresh := s.newPass(client, 10, 30*24*time.Hour)
		s.Require().NoError(s.store.Create(ctx, fresh, s.now))

		got, err := s.store.FindByClient(ctx, client)
		s.Require().NoError(err)
		s.Equal(fresh.ID, got.ID)
		s.Equal(10, got.Remaining)
	})

	s.Run("unknown client returns not found", func() {
		_, err := s.store.FindByClient(ctx, newClient())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresPassSuite) TestConsume() {
	ctx := context.Background()

	s.Run("only the first consumption is fee-free", func() {
		client := newClient()
		s.Require().NoError(s.store.Create(ctx, s.newPass(client, 3, 30*24*time.Hour), s.now))

		feeFree, err := s.store.Consume(ctx, client, s.now)
		s.Require().NoError(err)
		s.True(feeFree)

		feeFree, err = s.store.Consume(ctx, client, s.now)
		s.Require().NoError(err)
		s.False(feeFree)
	})

	s.Run("restore does not reopen the fee-free slot", func() {
		client := newClient()
		s.Require().NoError(s.store.Create(ctx, s.newPass(client, 3, 30*24*time.Hour), s.now))

		_, err := s.store.Consume(ctx, client, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Restore(ctx, client))

		feeFree, err := s.store.Consume(ctx, client, s.now)
		s.Require().NoError(err)
		s.False(feeFree)
	})

	s.Run("expired pass refuses consumption", func() {
		client := newClient()
		pass := s.newPass(client, 3, 30*24*time.Hour)
		s.Require().NoError(s.store.Create(ctx, pass, s.now))

		_, err := s.store.Consume(ctx, client, pass.ExpiresAt.Add(time.Hour))
		s.ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("exhausted pass refuses consumption", func() {
		client := newClient()
		s.Require().NoError(s.store.Create(ctx, s.newPass(client, 1, 30*24*time.Hour), s.now))
		_, err := s.store.Consume(ctx, client, s.now)
		s.Require().NoError(err)

		_, err = s.store.Consume(ctx, client, s.now)
		s.ErrorIs(err, sentinel.ErrExhausted)
	})

	s.Run("unknown client returns not found", func() {
		_, err := s.store.Consume(ctx, newClient(), s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresPassSuite) TestRestore() {
	ctx := context.Background()

	s.Run("restore at capacity is rejected", func() {
		client := newClient()
		s.Require().NoError(s.store.Create(ctx, s.newPass(client, 3, 30*24*time.Hour), s.now))

		err := s.store.Restore(ctx, client)
		s.ErrorIs(err, sentinel.ErrAtCapacity)
	})

	s.Run("unknown client returns not found", func() {
		s.ErrorIs(s.store.Restore(ctx, newClient()), sentinel.ErrNotFound)
	})
}

// TestConcurrentConsume verifies the guarded update never over-consumes:
// with N credits and 2N contenders exactly N succeed.
func (s *PostgresPassSuite) TestConcurrentConsume() {
	ctx := context.Background()
	client := newClient()
	const credits = 10
	s.Require().NoError(s.store.Create(ctx, s.newPass(client, credits, 30*24*time.Hour), s.now))

	var wg sync.WaitGroup
	var wins, exhausted, feeFreeCount atomic.Int32
	for i := 0; i < 2*credits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feeFree, err := s.store.Consume(ctx, client, s.now)
			switch {
			case err == nil:
				wins.Add(1)
				if feeFree {
					feeFreeCount.Add(1)
				}
			case errors.Is(err, sentinel.ErrExhausted):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(credits), wins.Load())
	s.Equal(int32(credits), exhausted.Load())
	s.Equal(int32(1), feeFreeCount.Load())

	got, err := s.store.FindByClient(ctx, client)
	s.Require().NoError(err)
	s.Equal(0, got.Remaining)
	s.Equal(credits, got.Consumed)
}
