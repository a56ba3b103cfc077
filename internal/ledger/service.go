package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"paylog/internal/ledger/metrics"
	"paylog/pkg/domain"
	"paylog/pkg/platform/sentinel"
	"paylog/pkg/requestcontext"
)

// Authenticator supplies the verified caller identity for a call. The ledger
// never trusts identities asserted in request payloads; the execution
// environment authenticates the caller before the operation runs.
type Authenticator interface {
	Caller(ctx context.Context) (domain.Address, error)
}

// ContextAuthenticator reads the caller set by the auth middleware.
type ContextAuthenticator struct{}

func (ContextAuthenticator) Caller(ctx context.Context) (domain.Address, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return "", ErrUnauthorized
	}
	return caller, nil
}

// ViewCache is an optional read-through cache for milestone snapshots.
// Implementations are best effort: a cache fault degrades to a store read and
// must never surface to callers.
type ViewCache interface {
	GetMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int) (*MilestoneView, bool)
	SetMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int, view MilestoneView)
	Invalidate(ctx context.Context, registryID domain.RegistryID, milestoneID int)
}

// Service orchestrates registry lifecycle, transitions and queries. It keeps
// orchestration out of handlers and state machine logic in the engine.
type Service struct {
	store   Store
	engine  *Engine
	auth    Authenticator
	cache   ViewCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithAuthenticator overrides the caller identity source.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Service) { s.auth = auth }
}

// WithClock overrides the trusted clock used for registry creation and all
// transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.engine = NewEngine(now)
	}
}

// WithCache enables the milestone view cache.
func WithCache(cache ViewCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		auth:   ContextAuthenticator{},
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.engine = NewEngine(s.now)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRegistry initializes a registry from caller configuration. Any
// authenticated account may create one; the three role identities it names
// are fixed for the registry's lifetime.
func (s *Service) CreateRegistry(ctx context.Context, p InitParams) (*Registry, error) {
	caller, err := s.auth.Caller(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(domain.NewRegistryID(), p, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRegistry(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	s.metrics.IncrementRegistriesCreated()
	s.logger.InfoContext(ctx, "registry created",
		"request_id", requestcontext.RequestID(ctx),
		"registry_id", reg.ID,
		"project_id", reg.ProjectID,
		"milestones", len(reg.Milestones),
		"creator", caller,
	)
	return reg, nil
}

// RequestRelease records the oracle's work attestation for a milestone and
// appends the ReleaseRequested event, atomically.
func (s *Service) RequestRelease(ctx context.Context, registryID domain.RegistryID, milestoneID int, workHash domain.Hash32) error {
	start := time.Now()
	err := s.transition(ctx, registryID, func(reg *Registry, caller domain.Address) (*Transition, error) {
		return s.engine.RequestRelease(reg, caller, milestoneID, workHash)
	})
	s.metrics.ObserveTransition("request_release", outcomeLabel(err), start)
	if err != nil {
		return err
	}

	s.invalidateView(ctx, registryID, milestoneID)
	s.logger.InfoContext(ctx, "release requested",
		"request_id", requestcontext.RequestID(ctx),
		"registry_id", registryID,
		"milestone_id", milestoneID,
		"work_hash", workHash,
	)
	return nil
}

// ConfirmPayment records the client's payment attestation for a milestone and
// appends the Attested event, atomically.
func (s *Service) ConfirmPayment(ctx context.Context, registryID domain.RegistryID, milestoneID int, paidAmount *big.Int, paymentRef domain.Hash32) error {
	start := time.Now()
	err := s.transition(ctx, registryID, func(reg *Registry, caller domain.Address) (*Transition, error) {
		return s.engine.ConfirmPayment(reg, caller, milestoneID, paidAmount, paymentRef)
	})
	s.metrics.ObserveTransition("confirm_payment", outcomeLabel(err), start)
	if err != nil {
		return err
	}

	s.invalidateView(ctx, registryID, milestoneID)
	s.logger.InfoContext(ctx, "payment attested",
		"request_id", requestcontext.RequestID(ctx),
		"registry_id", registryID,
		"milestone_id", milestoneID,
		"payment_reference", paymentRef,
	)
	return nil
}

func (s *Service) transition(ctx context.Context, registryID domain.RegistryID, fn func(reg *Registry, caller domain.Address) (*Transition, error)) error {
	caller, err := s.auth.Caller(ctx)
	if err != nil {
		return err
	}
	err = s.store.Execute(ctx, registryID, func(reg *Registry) (*Transition, error) {
		return fn(reg, caller)
	})
	if err == nil {
		return nil
	}
	if isLedgerError(err) || errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	// The transition itself was valid; the store could not durably commit
	// the mutation together with its event record.
	return fmt.Errorf("%w: %v", ErrLog, err)
}

// ViewMilestone returns the milestone's current snapshot, or nil when the id
// is out of range. Pure read, open to any caller.
func (s *Service) ViewMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int) (*MilestoneView, error) {
	if milestoneID < 0 {
		return nil, nil
	}
	if s.cache != nil {
		if view, ok := s.cache.GetMilestone(ctx, registryID, milestoneID); ok {
			s.metrics.ObserveCacheLookup("hit")
			return view, nil
		}
		s.metrics.ObserveCacheLookup("miss")
	}

	reg, err := s.store.FindRegistry(ctx, registryID)
	if err != nil {
		return nil, err
	}
	if milestoneID >= len(reg.Milestones) {
		return nil, nil
	}
	view := reg.Milestones[milestoneID].View()
	if s.cache != nil {
		s.cache.SetMilestone(ctx, registryID, milestoneID, view)
	}
	return &view, nil
}

// GetRegistry returns a snapshot of the whole registry.
func (s *Service) GetRegistry(ctx context.Context, registryID domain.RegistryID) (*Registry, error) {
	return s.store.FindRegistry(ctx, registryID)
}

// ListEvents returns the registry's append-only event trail.
func (s *Service) ListEvents(ctx context.Context, registryID domain.RegistryID) ([]Record, error) {
	if _, err := s.store.FindRegistry(ctx, registryID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, registryID)
}

func (s *Service) invalidateView(ctx context.Context, registryID domain.RegistryID, milestoneID int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, registryID, milestoneID)
	}
}

func isLedgerError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrInvalidMilestone, ErrAlreadyRequested,
		ErrNotRequested, ErrAlreadyReleased, ErrAmountMismatch,
		ErrLog, ErrParse, ErrInvariantViolation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidMilestone):
		return "invalid_milestone"
	case errors.Is(err, ErrAlreadyRequested):
		return "already_requested"
	case errors.Is(err, ErrNotRequested):
		return "not_requested"
	case errors.Is(err, ErrAlreadyReleased):
		return "already_released"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrLog):
		return "log_error"
	default:
		return "error"
	}
}
