// Package postgres implements settlement.Store on PostgreSQL through a pgx
// connection pool. Session games, fee configuration and paid flags live in
// JSONB columns so the session stays a single row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/club-settlement/settlement"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlement_sessions (
	operator_id TEXT NOT NULL,
	id TEXT NOT NULL,
	match_date DATE NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	games JSONB NOT NULL DEFAULT '[]',
	fee_config JSONB NOT NULL DEFAULT '{}',
	paid_status JSONB NOT NULL DEFAULT '{}',
	ranking_saved BOOLEAN NOT NULL DEFAULT FALSE,
	payment_history_saved BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (operator_id, id)
);

CREATE TABLE IF NOT EXISTS settlement_ranking_ledgers (
	operator_id TEXT NOT NULL,
	month TEXT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (operator_id, month)
);

CREATE TABLE IF NOT EXISTS settlement_ranking_entries (
	operator_id TEXT NOT NULL,
	month TEXT NOT NULL,
	player TEXT NOT NULL,
	wins INTEGER NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	total_games INTEGER NOT NULL DEFAULT 0,
	total_balls INTEGER NOT NULL DEFAULT 0,
	level TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (operator_id, month, player)
);

CREATE TABLE IF NOT EXISTS settlement_payment_history (
	operator_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	match_date DATE NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	total_overall NUMERIC NOT NULL,
	members_data JSONB NOT NULL,
	fee_config JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (operator_id, session_id)
);
`

// Store implements settlement.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ settlement.Store = (*Store)(nil)

// New connects to dsn, checks the connection and creates missing tables.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// GetSession loads one session row.
func (s *Store) GetSession(ctx context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.Session, error) {
	var (
		sess              settlement.Session
		games, fees, paid []byte
		matchDate         time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, match_date, topic, games, fee_config, paid_status, ranking_saved, payment_history_saved, created_at, updated_at
		FROM settlement_sessions WHERE operator_id = $1 AND id = $2`,
		string(op), string(id),
	).Scan(&sess.ID, &matchDate, &sess.Topic, &games, &fees, &paid,
		&sess.RankingSaved, &sess.PaymentHistorySaved, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, settlement.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Date = time.Date(matchDate.Year(), matchDate.Month(), matchDate.Day(), 0, 0, 0, 0, time.UTC)
	if err := json.Unmarshal(games, &sess.Games); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}
	if err := json.Unmarshal(fees, &sess.FeeConfig); err != nil {
		return nil, fmt.Errorf("failed to decode fee config: %w", err)
	}
	if err := json.Unmarshal(paid, &sess.PaidStatus); err != nil {
		return nil, fmt.Errorf("failed to decode paid status: %w", err)
	}
	if sess.PaidStatus == nil {
		sess.PaidStatus = make(map[string]bool)
	}
	return &sess, nil
}

// SaveSession inserts or replaces a session row. created_at is kept on replace.
func (s *Store) SaveSession(ctx context.Context, op settlement.OperatorID, sess settlement.Session) error {
	games, err := json.Marshal(sess.Games)
	if err != nil {
		return fmt.Errorf("failed to encode games: %w", err)
	}
	fees, err := json.Marshal(sess.FeeConfig)
	if err != nil {
		return fmt.Errorf("failed to encode fee config: %w", err)
	}
	paid := sess.PaidStatus
	if paid == nil {
		paid = map[string]bool{}
	}
	paidJSON, err := json.Marshal(paid)
	if err != nil {
		return fmt.Errorf("failed to encode paid status: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO settlement_sessions
			(operator_id, id, match_date, topic, games, fee_config, paid_status, ranking_saved, payment_history_saved)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8, $9)
		ON CONFLICT (operator_id, id) DO UPDATE SET
			match_date = EXCLUDED.match_date,
			topic = EXCLUDED.topic,
			games = EXCLUDED.games,
			fee_config = EXCLUDED.fee_config,
			paid_status = EXCLUDED.paid_status,
			ranking_saved = EXCLUDED.ranking_saved,
			payment_history_saved = EXCLUDED.payment_history_saved,
			updated_at = now()`,
		string(op), string(sess.ID), sess.Date, sess.Topic,
		string(games), string(fees), string(paidJSON),
		sess.RankingSaved, sess.PaymentHistorySaved,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// MergeSession applies the patch in a single UPDATE. Paid flags are merged
// into the JSONB map key by key.
func (s *Store) MergeSession(ctx context.Context, op settlement.OperatorID, id settlement.SessionID, patch settlement.SessionPatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{string(op), string(id)}
	next := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.RankingSaved != nil {
		next("ranking_saved = $%d", *patch.RankingSaved)
	}
	if patch.PaymentHistorySaved != nil {
		next("payment_history_saved = $%d", *patch.PaymentHistorySaved)
	}
	if patch.FeeConfig != nil {
		fees, err := json.Marshal(patch.FeeConfig)
		if err != nil {
			return fmt.Errorf("failed to encode fee config: %w", err)
		}
		next("fee_config = $%d::jsonb", string(fees))
	}
	if len(patch.PaidStatus) > 0 {
		paid, err := json.Marshal(patch.PaidStatus)
		if err != nil {
			return fmt.Errorf("failed to encode paid status: %w", err)
		}
		next("paid_status = paid_status || $%d::jsonb", string(paid))
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE settlement_sessions SET "+strings.Join(sets, ", ")+" WHERE operator_id = $1 AND id = $2",
		args...)
	if err != nil {
		return fmt.Errorf("failed to merge session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrSessionNotFound
	}
	return nil
}

// GetMonthlyRanking returns an empty ledger when the month has no row.
func (s *Store) GetMonthlyRanking(ctx context.Context, op settlement.OperatorID, month settlement.MonthKey) (settlement.MonthlyRanking, error) {
	out := settlement.MonthlyRanking{Month: month, Entries: make(map[string]settlement.RankingEntry)}

	err := s.pool.QueryRow(ctx,
		"SELECT last_updated FROM settlement_ranking_ledgers WHERE operator_id = $1 AND month = $2",
		string(op), string(month),
	).Scan(&out.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to get ranking ledger: %w", err)
	}
	out.LastUpdated = out.LastUpdated.UTC()

	rows, err := s.pool.Query(ctx, `
		SELECT player, wins, score, total_games, total_balls, level
		FROM settlement_ranking_entries WHERE operator_id = $1 AND month = $2`,
		string(op), string(month))
	if err != nil {
		return out, fmt.Errorf("failed to query ranking entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var player string
		var e settlement.RankingEntry
		if err := rows.Scan(&player, &e.Wins, &e.Score, &e.TotalGames, &e.TotalBalls, &e.Level); err != nil {
			return out, err
		}
		out.Entries[player] = e
	}
	return out, rows.Err()
}

// MergeMonthlyRanking upserts the given players and the ledger stamp in one transaction.
func (s *Store) MergeMonthlyRanking(ctx context.Context, op settlement.OperatorID, month settlement.MonthKey, entries map[string]settlement.RankingEntry, updatedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for player, e := range entries {
		batch.Queue(`
			INSERT INTO settlement_ranking_entries
				(operator_id, month, player, wins, score, total_games, total_balls, level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (operator_id, month, player) DO UPDATE SET
				wins = EXCLUDED.wins,
				score = EXCLUDED.score,
				total_games = EXCLUDED.total_games,
				total_balls = EXCLUDED.total_balls,
				level = EXCLUDED.level`,
			string(op), string(month), player, e.Wins, e.Score, e.TotalGames, e.TotalBalls, e.Level)
	}
	batch.Queue(`
		INSERT INTO settlement_ranking_ledgers (operator_id, month, last_updated) VALUES ($1, $2, $3)
		ON CONFLICT (operator_id, month) DO UPDATE SET last_updated = EXCLUDED.last_updated`,
		string(op), string(month), updatedAt.UTC())

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to merge ranking: %w", err)
	}
	return tx.Commit(ctx)
}

// PutPaymentHistory replaces the session's payment record.
func (s *Store) PutPaymentHistory(ctx context.Context, op settlement.OperatorID, rec settlement.PaymentHistoryRecord) error {
	members, err := json.Marshal(rec.MembersData)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	fees, err := json.Marshal(rec.FeeConfig)
	if err != nil {
		return fmt.Errorf("failed to encode fee config: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO settlement_payment_history
			(operator_id, session_id, match_date, topic, total_overall, members_data, fee_config, saved_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::jsonb, $7::jsonb, $8)
		ON CONFLICT (operator_id, session_id) DO UPDATE SET
			match_date = EXCLUDED.match_date,
			topic = EXCLUDED.topic,
			total_overall = EXCLUDED.total_overall,
			members_data = EXCLUDED.members_data,
			fee_config = EXCLUDED.fee_config,
			saved_at = EXCLUDED.saved_at`,
		string(op), string(rec.SessionID), rec.MatchDate, rec.Topic,
		rec.TotalOverall.String(), string(members), string(fees), rec.SavedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to put payment history: %w", err)
	}
	return nil
}

// GetPaymentHistory loads the record for a session.
func (s *Store) GetPaymentHistory(ctx context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.PaymentHistoryRecord, error) {
	var (
		rec           settlement.PaymentHistoryRecord
		total         string
		members, fees []byte
		matchDate     time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, match_date, topic, total_overall::text, members_data, fee_config, saved_at
		FROM settlement_payment_history WHERE operator_id = $1 AND session_id = $2`,
		string(op), string(id),
	).Scan(&rec.SessionID, &matchDate, &rec.Topic, &total, &members, &fees, &rec.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, settlement.ErrPaymentHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}

	rec.MatchDate = time.Date(matchDate.Year(), matchDate.Month(), matchDate.Day(), 0, 0, 0, 0, time.UTC)
	rec.SavedAt = rec.SavedAt.UTC()
	if rec.TotalOverall, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to decode total: %w", err)
	}
	if err := json.Unmarshal(members, &rec.MembersData); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	if err := json.Unmarshal(fees, &rec.FeeConfig); err != nil {
		return nil, fmt.Errorf("failed to decode fee config: %w", err)
	}
	return &rec, nil
}
