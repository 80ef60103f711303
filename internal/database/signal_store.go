package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/signals"
)

const signalColumns = `id, symbol, direction, entry_price, stop_loss, take_profit, risk_reward_ratio,
	score, rating, status, position_size, leverage, evidence, created_at, expires_at, updated_at`

// SignalStore is a signals.Store backed by PostgreSQL. The partial unique
// index on (symbol, direction) WHERE status = 'ACTIVE' makes Create atomic.
type SignalStore struct {
	db *DB
}

// NewSignalStore creates a Postgres signal store
func NewSignalStore(db *DB) *SignalStore {
	return &SignalStore{db: db}
}

var _ signals.Store = (*SignalStore)(nil)

// Create inserts a signal; a conflicting ACTIVE row yields ErrActiveSignalExists
func (s *SignalStore) Create(ctx context.Context, sig *signals.Signal) error {
	evidence, err := json.Marshal(sig.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (symbol, direction) WHERE status = 'ACTIVE' DO NOTHING
	`
	tag, err := s.db.Pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Direction), sig.EntryPrice, sig.StopLoss, sig.TakeProfit,
		sig.RiskRewardRatio, sig.Score, string(sig.Rating), string(sig.Status), sig.PositionSize,
		sig.Leverage, evidence, sig.CreatedAt, sig.ExpiresAt, sig.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return signals.ErrActiveSignalExists
	}
	return nil
}

// Get loads a signal by id
func (s *SignalStore) Get(ctx context.Context, id string) (*signals.Signal, error) {
	row := s.db.Pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id)
	return scanSignal(row)
}

// FindActive returns the ACTIVE signal for a symbol and direction
func (s *SignalStore) FindActive(ctx context.Context, symbol string, d analysis.Direction) (*signals.Signal, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE symbol = $1 AND direction = $2 AND status = 'ACTIVE'`,
		symbol, string(d))
	return scanSignal(row)
}

// List returns matching signals newest first
func (s *SignalStore) List(ctx context.Context, f signals.Filter) ([]*signals.Signal, error) {
	query, args := buildListQuery(f)
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	out := make([]*signals.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// UpdateStatus applies a transition inside a row-locking transaction
func (s *SignalStore) UpdateStatus(ctx context.Context, id string, to signals.Status, now time.Time) (*signals.Signal, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sig, err := scanSignal(tx.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := sig.Transition(to, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE signals SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(sig.Status), sig.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update signal %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return sig, nil
}

// ExpireStale expires live signals past their TTL in one statement
func (s *SignalStore) ExpireStale(ctx context.Context, now time.Time) ([]*signals.Signal, error) {
	rows, err := s.db.Pool.Query(ctx, `
		UPDATE signals SET status = 'EXPIRED', updated_at = $1
		WHERE status IN ('ACTIVE', 'TRIGGERED') AND expires_at <= $1
		RETURNING `+signalColumns, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire signals: %w", err)
	}
	defer rows.Close()

	var expired []*signals.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, sig)
	}
	return expired, rows.Err()
}

// buildListQuery renders the filtered list query and its arguments
func buildListQuery(f signals.Filter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Symbol != "" {
		add("symbol = $%d", f.Symbol)
	}
	if f.Direction != "" {
		add("direction = $%d", string(f.Direction))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func scanSignal(row pgx.Row) (*signals.Signal, error) {
	var (
		sig                       signals.Signal
		direction, rating, status string
		evidence                  []byte
	)
	err := row.Scan(
		&sig.ID, &sig.Symbol, &direction, &sig.EntryPrice, &sig.StopLoss, &sig.TakeProfit,
		&sig.RiskRewardRatio, &sig.Score, &rating, &status, &sig.PositionSize, &sig.Leverage,
		&evidence, &sig.CreatedAt, &sig.ExpiresAt, &sig.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, signals.ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan signal: %w", err)
	}
	sig.Direction = analysis.Direction(direction)
	sig.Rating = confluence.Rating(rating)
	sig.Status = signals.Status(status)
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &sig.Evidence); err != nil {
			return nil, fmt.Errorf("failed to decode evidence: %w", err)
		}
	}
	return &sig, nil
}
