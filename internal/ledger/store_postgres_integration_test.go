//go:build integration

package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"paylog/internal/ledger"
	"paylog/pkg/domain"
	"paylog/pkg/platform/sentinel"
	"paylog/pkg/testutil/containers"
)

const (
	clientAddr     = domain.Address("acct-client")
	freelancerAddr = domain.Address("acct-freelancer")
	oracleAddr     = domain.Address("acct-oracle")
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
	engine   *ledger.Engine
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = ledger.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.engine = ledger.NewEngine(func() time.Time { return s.now })
}

func (s *PostgresStoreSuite) SetupTest() {
	// Truncate in dependency order
	err := s.postgres.TruncateTables(context.Background(), "ledger_events", "milestones", "registries")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newStoredRegistry(amounts ...int64) *ledger.Registry {
	if len(amounts) == 0 {
		amounts = []int64{1000, 2500}
	}
	bigs := make([]*big.Int, len(amounts))
	for i, v := range amounts {
		bigs[i] = big.NewInt(v)
	}
	reg, err := ledger.NewRegistry(domain.NewRegistryID(), ledger.InitParams{
		ProjectID:       "proj-pg",
		Client:          clientAddr,
		Freelancer:      freelancerAddr,
		Oracle:          oracleAddr,
		Amounts:         bigs,
		DisplayDecimals: 6,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRegistry(context.Background(), reg))
	return reg
}

func testHash(fill byte) domain.Hash32 {
	var h domain.Hash32
	for i := range h {
		h[i] = fill
	}
	return h
}

// TestRoundTrip verifies a registry survives persistence intact.
func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	reg := s.newStoredRegistry(1000, 2500)

	found, err := s.store.FindRegistry(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ProjectID, found.ProjectID)
	s.Equal(clientAddr, found.Client)
	s.Equal(uint8(6), found.DisplayDecimals)
	s.Require().Len(found.Milestones, 2)
	s.Equal("1000", found.Milestones[0].Amount.String())
	s.Equal("2500", found.Milestones[1].Amount.String())
	s.Nil(found.Milestones[0].WorkHash)

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.CreateRegistry(ctx, reg), sentinel.ErrConflict)
	})

	s.Run("unknown id not found", func() {
		_, err := s.store.FindRegistry(ctx, domain.NewRegistryID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestBigAmounts verifies NUMERIC round-trips beyond 64 bits.
func (s *PostgresStoreSuite) TestBigAmounts() {
	ctx := context.Background()
	huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	s.Require().True(ok)

	reg, err := ledger.NewRegistry(domain.NewRegistryID(), ledger.InitParams{
		ProjectID:  "proj-big",
		Client:     clientAddr,
		Freelancer: freelancerAddr,
		Oracle:     oracleAddr,
		Amounts:    []*big.Int{huge},
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRegistry(ctx, reg))

	found, err := s.store.FindRegistry(ctx, reg.ID)
	s.Require().NoError(err)
	s.Zero(huge.Cmp(found.Milestones[0].Amount))
}

// TestExecute verifies milestone update and event insert commit atomically.
func (s *PostgresStoreSuite) TestExecute() {
	ctx := context.Background()

	s.Run("commits a full transition", func() {
		reg := s.newStoredRegistry()
		err := s.store.Execute(ctx, reg.ID, func(r *ledger.Registry) (*ledger.Transition, error) {
			return s.engine.RequestRelease(r, oracleAddr, 0, testHash(0xAA))
		})
		s.Require().NoError(err)

		found, err := s.store.FindRegistry(ctx, reg.ID)
		s.Require().NoError(err)
		ms := found.Milestones[0]
		s.True(ms.Requested)
		s.Require().NotNil(ms.WorkHash)
		s.Equal(testHash(0xAA), *ms.WorkHash)
		s.Require().NotNil(ms.RequestedAt)
		s.True(s.now.Equal(*ms.RequestedAt))

		events, err := s.store.ListEvents(ctx, reg.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(ledger.EventTypeReleaseRequested, events[0].Type)
	})

	s.Run("rolls back when the callback rejects", func() {
		reg := s.newStoredRegistry()
		boom := errors.New("boom")
		err := s.store.Execute(ctx, reg.ID, func(r *ledger.Registry) (*ledger.Transition, error) {
			return nil, boom
		})
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindRegistry(ctx, reg.ID)
		s.Require().NoError(err)
		s.False(found.Milestones[0].Requested)

		events, err := s.store.ListEvents(ctx, reg.ID)
		s.Require().NoError(err)
		s.Empty(events)
	})

	s.Run("unknown registry not found", func() {
		err := s.store.Execute(ctx, domain.NewRegistryID(), func(r *ledger.Registry) (*ledger.Transition, error) {
			s.Fail("callback must not run")
			return nil, nil
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentTransitions verifies the row lock serializes competing
// transitions: exactly one release request wins.
func (s *PostgresStoreSuite) TestConcurrentTransitions() {
	ctx := context.Background()
	reg := s.newStoredRegistry()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(fill byte) {
			defer wg.Done()
			err := s.store.Execute(ctx, reg.ID, func(r *ledger.Registry) (*ledger.Transition, error) {
				return s.engine.RequestRelease(r, oracleAddr, 0, testHash(fill))
			})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, ledger.ErrAlreadyRequested) {
				conflictCount.Add(1)
			}
		}(byte(i))
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one request should win")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should see the prior request")

	events, err := s.store.ListEvents(ctx, reg.ID)
	s.Require().NoError(err)
	s.Len(events, 1)
}

// TestOutboxBookkeeping verifies pending selection and publish marks.
func (s *PostgresStoreSuite) TestOutboxBookkeeping() {
	ctx := context.Background()
	reg := s.newStoredRegistry()

	s.Require().NoError(s.store.Execute(ctx, reg.ID, func(r *ledger.Registry) (*ledger.Transition, error) {
		return s.engine.RequestRelease(r, oracleAddr, 0, testHash(1))
	}))
	s.Require().NoError(s.store.Execute(ctx, reg.ID, func(r *ledger.Registry) (*ledger.Transition, error) {
		return s.engine.ConfirmPayment(r, clientAddr, 0, big.NewInt(1000), testHash(2))
	}))

	pending, err := s.store.PendingEvents(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(ledger.EventTypeReleaseRequested, pending[0].Type)
	s.Equal(ledger.EventTypeAttested, pending[1].Type)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{pending[0].ID}, s.now))

	pending, err = s.store.PendingEvents(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(ledger.EventTypeAttested, pending[0].Type)

	events, err := s.store.ListEvents(ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.NotNil(events[0].PublishedAt)
	s.Nil(events[1].PublishedAt)
}
