package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"paylog/pkg/domain"
	"paylog/pkg/platform/sentinel"
)

// PostgresStore persists registries and the event trail in PostgreSQL.
// Transitions run inside a transaction holding the registry row lock, so the
// milestone update and the event insert commit together or not at all.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS registries (
	id UUID PRIMARY KEY,
	project_id TEXT NOT NULL,
	client TEXT NOT NULL,
	freelancer TEXT NOT NULL,
	oracle TEXT NOT NULL,
	display_decimals SMALLINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS milestones (
	registry_id UUID NOT NULL REFERENCES registries(id),
	idx INTEGER NOT NULL,
	amount NUMERIC(39, 0) NOT NULL,
	requested BOOLEAN NOT NULL DEFAULT FALSE,
	released BOOLEAN NOT NULL DEFAULT FALSE,
	work_hash BYTEA,
	payment_reference BYTEA,
	requested_at TIMESTAMPTZ,
	attested_at TIMESTAMPTZ,
	PRIMARY KEY (registry_id, idx)
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id UUID PRIMARY KEY,
	seq BIGSERIAL NOT NULL,
	registry_id UUID NOT NULL REFERENCES registries(id),
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS ledger_events_pending_idx
	ON ledger_events (seq) WHERE published_at IS NULL;
`

// Migrate applies the store schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateRegistry(ctx context.Context, reg *Registry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create registry: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registries (id, project_id, client, freelancer, oracle, display_decimals, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(reg.ID), reg.ProjectID, reg.Client.String(), reg.Freelancer.String(),
		reg.Oracle.String(), int16(reg.DisplayDecimals), reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registry: %w", err)
	}

	for i := range reg.Milestones {
		ms := &reg.Milestones[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO milestones (registry_id, idx, amount, requested, released)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.UUID(reg.ID), i, ms.Amount.String(), ms.Requested, ms.Released,
		)
		if err != nil {
			return fmt.Errorf("insert milestone %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create registry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRegistry(ctx context.Context, id domain.RegistryID) (*Registry, error) {
	return s.loadRegistry(ctx, s.db, id, false)
}

func (s *PostgresStore) Execute(ctx context.Context, id domain.RegistryID, fn func(reg *Registry) (*Transition, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reg, err := s.loadRegistry(ctx, tx, id, true)
	if err != nil {
		return err
	}

	tr, err := fn(reg)
	if err != nil {
		return err
	}
	if tr == nil {
		return nil
	}
	if tr.MilestoneID < 0 || tr.MilestoneID >= len(reg.Milestones) {
		return sentinel.ErrInvalidState
	}

	ms := tr.Milestone
	_, err = tx.ExecContext(ctx, `
		UPDATE milestones
		SET requested = $3, released = $4, work_hash = $5, payment_reference = $6,
			requested_at = $7, attested_at = $8
		WHERE registry_id = $1 AND idx = $2`,
		uuid.UUID(id), tr.MilestoneID, ms.Requested, ms.Released,
		hashBytes(ms.WorkHash), hashBytes(ms.PaymentReference),
		nullTime(ms.RequestedAt), nullTime(ms.AttestedAt),
	)
	if err != nil {
		return fmt.Errorf("update milestone: %w", err)
	}

	rec := tr.Record
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_events (id, registry_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, uuid.UUID(rec.RegistryID), rec.Type, []byte(rec.Payload), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, id domain.RegistryID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registry_id, event_type, payload, created_at, published_at
		FROM ledger_events
		WHERE registry_id = $1
		ORDER BY seq`,
		uuid.UUID(id),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) PendingEvents(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registry_id, event_type, payload, created_at, published_at
		FROM ledger_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE ledger_events SET published_at = $1
		WHERE id = ANY($2) AND published_at IS NULL`,
		publishedAt, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) loadRegistry(ctx context.Context, q querier, id domain.RegistryID, forUpdate bool) (*Registry, error) {
	query := `
		SELECT id, project_id, client, freelancer, oracle, display_decimals, created_at
		FROM registries WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		reg      Registry
		regID    uuid.UUID
		decimals int16
	)
	var client, freelancer, oracle string
	err := q.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&regID, &reg.ProjectID, &client, &freelancer, &oracle, &decimals, &reg.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registry: %w", err)
	}
	reg.ID = domain.RegistryID(regID)
	reg.Client = domain.Address(client)
	reg.Freelancer = domain.Address(freelancer)
	reg.Oracle = domain.Address(oracle)
	reg.DisplayDecimals = uint8(decimals)

	rows, err := q.QueryContext(ctx, `
		SELECT amount, requested, released, work_hash, payment_reference, requested_at, attested_at
		FROM milestones WHERE registry_id = $1 ORDER BY idx`,
		uuid.UUID(id),
	)
	if err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			amount                string
			ms                    Milestone
			workHash, paymentRef  []byte
			requestedAt, attestAt sql.NullTime
		)
		if err := rows.Scan(&amount, &ms.Requested, &ms.Released, &workHash, &paymentRef, &requestedAt, &attestAt); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		amt, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("parse milestone amount %q", amount)
		}
		ms.Amount = amt
		if ms.WorkHash, err = hashFromBytes(workHash); err != nil {
			return nil, err
		}
		if ms.PaymentReference, err = hashFromBytes(paymentRef); err != nil {
			return nil, err
		}
		if requestedAt.Valid {
			t := requestedAt.Time
			ms.RequestedAt = &t
		}
		if attestAt.Valid {
			t := attestAt.Time
			ms.AttestedAt = &t
		}
		reg.Milestones = append(reg.Milestones, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate milestones: %w", err)
	}
	return &reg, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			rec         Record
			regID       uuid.UUID
			payload     []byte
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &regID, &rec.Type, &payload, &rec.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.RegistryID = domain.RegistryID(regID)
		rec.Payload = payload
		if publishedAt.Valid {
			t := publishedAt.Time
			rec.PublishedAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func hashBytes(h *domain.Hash32) []byte {
	if h == nil {
		return nil
	}
	return h[:]
}

func hashFromBytes(b []byte) (*domain.Hash32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("stored digest must be 32 bytes, got %d", len(b))
	}
	var h domain.Hash32
	copy(h[:], b)
	return &h, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
