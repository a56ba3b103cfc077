package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"paylog/pkg/domain"
)

const (
	clientAddr     = domain.Address("acct-client")
	freelancerAddr = domain.Address("acct-freelancer")
	oracleAddr     = domain.Address("acct-oracle")
	strangerAddr   = domain.Address("acct-stranger")
)

func testHash(fill byte) domain.Hash32 {
	var h domain.Hash32
	for i := range h {
		h[i] = fill
	}
	return h
}

func testAmounts(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

type EngineSuite struct {
	suite.Suite
	engine *Engine
	now    time.Time
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.engine = NewEngine(func() time.Time { return s.now })
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) newRegistry(amounts ...int64) *Registry {
	if len(amounts) == 0 {
		amounts = []int64{1000, 2500}
	}
	reg, err := NewRegistry(domain.NewRegistryID(), InitParams{
		ProjectID:       "proj-42",
		Client:          clientAddr,
		Freelancer:      freelancerAddr,
		Oracle:          oracleAddr,
		Amounts:         testAmounts(amounts...),
		DisplayDecimals: 6,
	}, s.now)
	s.Require().NoError(err)
	return reg
}

// requested applies a successful RequestRelease to the registry in place.
func (s *EngineSuite) requested(reg *Registry, milestoneID int, workHash domain.Hash32) {
	tr, err := s.engine.RequestRelease(reg, oracleAddr, milestoneID, workHash)
	s.Require().NoError(err)
	reg.Milestones[tr.MilestoneID] = tr.Milestone
}

// TestRequestRelease covers the oracle's work attestation.
func (s *EngineSuite) TestRequestRelease() {
	s.Run("marks milestone requested with digest and timestamp", func() {
		reg := s.newRegistry()
		hash := testHash(0xAB)

		tr, err := s.engine.RequestRelease(reg, oracleAddr, 0, hash)
		s.Require().NoError(err)

		s.Equal(0, tr.MilestoneID)
		s.True(tr.Milestone.Requested)
		s.False(tr.Milestone.Released)
		s.Require().NotNil(tr.Milestone.WorkHash)
		s.Equal(hash, *tr.Milestone.WorkHash)
		s.Require().NotNil(tr.Milestone.RequestedAt)
		s.Equal(s.now, *tr.Milestone.RequestedAt)
		s.Nil(tr.Milestone.PaymentReference)
		s.Nil(tr.Milestone.AttestedAt)
	})

	s.Run("does not touch the input registry", func() {
		reg := s.newRegistry()
		_, err := s.engine.RequestRelease(reg, oracleAddr, 0, testHash(1))
		s.Require().NoError(err)
		s.False(reg.Milestones[0].Requested)
		s.Nil(reg.Milestones[0].WorkHash)
	})

	s.Run("rejects non-oracle callers", func() {
		reg := s.newRegistry()
		for _, caller := range []domain.Address{clientAddr, freelancerAddr, strangerAddr, ""} {
			_, err := s.engine.RequestRelease(reg, caller, 0, testHash(1))
			s.Require().ErrorIs(err, ErrUnauthorized)
		}
	})

	s.Run("rejects out-of-range milestone ids", func() {
		reg := s.newRegistry(100, 200)
		for _, id := range []int{-1, 2, 99} {
			_, err := s.engine.RequestRelease(reg, oracleAddr, id, testHash(1))
			s.Require().ErrorIs(err, ErrInvalidMilestone)
		}
	})

	s.Run("checks role before milestone bounds", func() {
		reg := s.newRegistry()
		_, err := s.engine.RequestRelease(reg, strangerAddr, 99, testHash(1))
		s.ErrorIs(err, ErrUnauthorized)
	})

	s.Run("rejects a second request for the same milestone", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))

		_, err := s.engine.RequestRelease(reg, oracleAddr, 0, testHash(2))
		s.ErrorIs(err, ErrAlreadyRequested)
	})

	s.Run("rejects a request for a released milestone", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))
		tr, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(2))
		s.Require().NoError(err)
		reg.Milestones[0] = tr.Milestone

		_, err = s.engine.RequestRelease(reg, oracleAddr, 0, testHash(3))
		s.ErrorIs(err, ErrAlreadyReleased)
	})

	s.Run("milestones advance independently", func() {
		reg := s.newRegistry(100, 200, 300)
		s.requested(reg, 1, testHash(1))

		s.False(reg.Milestones[0].Requested)
		s.True(reg.Milestones[1].Requested)
		s.False(reg.Milestones[2].Requested)

		_, err := s.engine.RequestRelease(reg, oracleAddr, 0, testHash(2))
		s.NoError(err)
	})

	s.Run("emits a release requested record", func() {
		reg := s.newRegistry()
		hash := testHash(0xCD)

		tr, err := s.engine.RequestRelease(reg, oracleAddr, 1, hash)
		s.Require().NoError(err)

		s.Equal(EventTypeReleaseRequested, tr.Record.Type)
		s.Equal(reg.ID, tr.Record.RegistryID)
		s.JSONEq(`{
			"project_id": "proj-42",
			"milestone_id": 1,
			"work_hash": "`+hash.String()+`",
			"requested_at": "2025-06-01T12:00:00Z"
		}`, string(tr.Record.Payload))
	})
}

// TestConfirmPayment covers the client's payment attestation.
func (s *EngineSuite) TestConfirmPayment() {
	s.Run("releases a requested milestone", func() {
		reg := s.newRegistry()
		workHash := testHash(0x11)
		payRef := testHash(0x22)
		s.requested(reg, 0, workHash)

		tr, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), payRef)
		s.Require().NoError(err)

		s.True(tr.Milestone.Requested)
		s.True(tr.Milestone.Released)
		s.Require().NotNil(tr.Milestone.PaymentReference)
		s.Equal(payRef, *tr.Milestone.PaymentReference)
		s.Require().NotNil(tr.Milestone.AttestedAt)
		s.Equal(s.now, *tr.Milestone.AttestedAt)
		s.Require().NotNil(tr.Milestone.WorkHash)
		s.Equal(workHash, *tr.Milestone.WorkHash)
	})

	s.Run("rejects non-client callers", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))
		for _, caller := range []domain.Address{oracleAddr, freelancerAddr, strangerAddr, ""} {
			_, err := s.engine.ConfirmPayment(reg, caller, 0, big.NewInt(1000), testHash(2))
			s.Require().ErrorIs(err, ErrUnauthorized)
		}
	})

	s.Run("rejects out-of-range milestone ids", func() {
		reg := s.newRegistry()
		_, err := s.engine.ConfirmPayment(reg, clientAddr, 5, big.NewInt(1000), testHash(1))
		s.ErrorIs(err, ErrInvalidMilestone)
	})

	s.Run("rejects confirmation before any request", func() {
		reg := s.newRegistry()
		_, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(1))
		s.ErrorIs(err, ErrNotRequested)
	})

	s.Run("rejects a second confirmation", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))
		tr, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(2))
		s.Require().NoError(err)
		reg.Milestones[0] = tr.Milestone

		_, err = s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(3))
		s.ErrorIs(err, ErrAlreadyReleased)
	})

	s.Run("requires the exact configured amount", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))

		for _, paid := range []int64{999, 1001, 0, 2000} {
			_, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(paid), testHash(2))
			s.Require().ErrorIs(err, ErrAmountMismatch)
		}
	})

	s.Run("requires a paid amount", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))
		_, err := s.engine.ConfirmPayment(reg, clientAddr, 0, nil, testHash(2))
		s.ErrorIs(err, ErrParse)
	})

	s.Run("compares amounts beyond 64 bits", func() {
		huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
		s.Require().True(ok)
		reg, err := NewRegistry(domain.NewRegistryID(), InitParams{
			ProjectID:  "proj-huge",
			Client:     clientAddr,
			Freelancer: freelancerAddr,
			Oracle:     oracleAddr,
			Amounts:    []*big.Int{huge},
		}, s.now)
		s.Require().NoError(err)
		s.requested(reg, 0, testHash(1))

		_, err = s.engine.ConfirmPayment(reg, clientAddr, 0, new(big.Int).Sub(huge, big.NewInt(1)), testHash(2))
		s.Require().ErrorIs(err, ErrAmountMismatch)

		_, err = s.engine.ConfirmPayment(reg, clientAddr, 0, new(big.Int).Set(huge), testHash(2))
		s.NoError(err)
	})

	s.Run("surfaces a requested milestone with no work hash", func() {
		reg := s.newRegistry()
		reg.Milestones[0].Requested = true

		_, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(1))
		s.ErrorIs(err, ErrInvariantViolation)
	})

	s.Run("emits an attested record carrying both digests", func() {
		reg := s.newRegistry()
		workHash := testHash(0x33)
		payRef := testHash(0x44)
		s.requested(reg, 1, workHash)

		tr, err := s.engine.ConfirmPayment(reg, clientAddr, 1, big.NewInt(2500), payRef)
		s.Require().NoError(err)

		s.Equal(EventTypeAttested, tr.Record.Type)
		s.JSONEq(`{
			"project_id": "proj-42",
			"milestone_id": 1,
			"work_hash": "`+workHash.String()+`",
			"payment_reference": "`+payRef.String()+`",
			"amount": "2500",
			"attested_at": "2025-06-01T12:00:00Z"
		}`, string(tr.Record.Payload))
	})
}

// TestTimestamps verifies transition times come from the injected clock.
func (s *EngineSuite) TestTimestamps() {
	s.Run("later transitions carry later timestamps", func() {
		reg := s.newRegistry()
		s.requested(reg, 0, testHash(1))
		requestedAt := *reg.Milestones[0].RequestedAt

		s.now = s.now.Add(3 * time.Hour)
		tr, err := s.engine.ConfirmPayment(reg, clientAddr, 0, big.NewInt(1000), testHash(2))
		s.Require().NoError(err)

		s.Require().NotNil(tr.Milestone.AttestedAt)
		s.True(tr.Milestone.AttestedAt.After(requestedAt))
		s.Equal(requestedAt, *tr.Milestone.RequestedAt)
	})
}
