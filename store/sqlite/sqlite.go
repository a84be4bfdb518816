/*
Package sqlite provides a SQLite-backed implementation of settlement.Store.

PURPOSE:
  Persists the three settlement documents (session, monthly ranking, payment
  history) in SQLite. Each document write is a single statement or a single
  SQL transaction, so a failure never leaves a document half written.

KEY TABLES:
  sessions:         session header + msgpack games blob + fee config JSON
  session_paid:     one row per (session, player), the paidStatus map
  ranking_ledgers:  one row per (operator, month), holds last_updated
  ranking_entries:  one row per (operator, month, player)
  payment_history:  one row per (operator, session), replaced on each save

MERGE SEMANTICS:
  MergeSession updates only the patched columns; paid flags upsert per
  player. MergeMonthlyRanking upserts the given players and stamps the ledger
  inside one transaction. PutPaymentHistory replaces the row.

USAGE:
  store, err := sqlite.New("./data/club.db")
  if err != nil {
      log.Fatal("open store", "err", err)
  }
  defer store.Close()

SEE ALSO:
  - settlement/store.go: interface definitions
  - settlement/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/warp/club-settlement/settlement"
)

const dateLayout = "2006-01-02"

// Store implements settlement.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ settlement.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Debug("sqlite store ready", "path", dbPath)
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		operator_id TEXT NOT NULL,
		id TEXT NOT NULL,
		date TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		games_blob BLOB,
		fee_config_json TEXT NOT NULL DEFAULT '{}',
		ranking_saved BOOLEAN NOT NULL DEFAULT FALSE,
		payment_history_saved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (operator_id, id)
	);

	CREATE TABLE IF NOT EXISTS session_paid (
		operator_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		player TEXT NOT NULL,
		paid BOOLEAN NOT NULL,
		PRIMARY KEY (operator_id, session_id, player),
		FOREIGN KEY (operator_id, session_id) REFERENCES sessions(operator_id, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS ranking_ledgers (
		operator_id TEXT NOT NULL,
		month TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		PRIMARY KEY (operator_id, month)
	);

	CREATE TABLE IF NOT EXISTS ranking_entries (
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

	CREATE TABLE IF NOT EXISTS payment_history (
		operator_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		match_date TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		total_overall TEXT NOT NULL,
		members_json TEXT NOT NULL,
		fee_config_json TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (operator_id, session_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SESSIONS
// =============================================================================

// GetSession loads a session and its paid flags.
func (s *Store) GetSession(ctx context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sess                 settlement.Session
		date, createdAt      string
		updatedAt, feeConfig string
		gamesBlob            []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, topic, games_blob, fee_config_json, ranking_saved, payment_history_saved, created_at, updated_at
		FROM sessions WHERE operator_id = ? AND id = ?`, op, id,
	).Scan(&sess.ID, &date, &sess.Topic, &gamesBlob, &feeConfig, &sess.RankingSaved, &sess.PaymentHistorySaved, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Date, _ = time.Parse(dateLayout, date)
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if sess.Games, err = decodeGames(gamesBlob); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(feeConfig), &sess.FeeConfig); err != nil {
		return nil, fmt.Errorf("failed to decode fee config: %w", err)
	}

	sess.PaidStatus = make(map[string]bool)
	rows, err := s.db.QueryContext(ctx,
		"SELECT player, paid FROM session_paid WHERE operator_id = ? AND session_id = ?", op, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query paid status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var player string
		var paid bool
		if err := rows.Scan(&player, &paid); err != nil {
			return nil, err
		}
		sess.PaidStatus[player] = paid
	}
	return &sess, rows.Err()
}

// SaveSession creates or replaces a session document, including its paid map.
func (s *Store) SaveSession(ctx context.Context, op settlement.OperatorID, sess settlement.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gamesBlob, err := encodeGames(sess.Games)
	if err != nil {
		return err
	}
	feeConfig, err := json.Marshal(sess.FeeConfig)
	if err != nil {
		return fmt.Errorf("failed to encode fee config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (operator_id, id, date, topic, games_blob, fee_config_json, ranking_saved, payment_history_saved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operator_id, id) DO UPDATE SET
			date = excluded.date,
			topic = excluded.topic,
			games_blob = excluded.games_blob,
			fee_config_json = excluded.fee_config_json,
			ranking_saved = excluded.ranking_saved,
			payment_history_saved = excluded.payment_history_saved,
			updated_at = excluded.updated_at`,
		op, sess.ID, sess.Date.Format(dateLayout), sess.Topic, gamesBlob, string(feeConfig),
		sess.RankingSaved, sess.PaymentHistorySaved, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM session_paid WHERE operator_id = ? AND session_id = ?", op, sess.ID); err != nil {
		return fmt.Errorf("failed to reset paid status: %w", err)
	}
	for player, paid := range sess.PaidStatus {
		if err := upsertPaid(ctx, tx, op, sess.ID, player, paid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MergeSession updates only the fields set on the patch.
func (s *Store) MergeSession(ctx context.Context, op settlement.OperatorID, id settlement.SessionID, patch settlement.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any
	if patch.RankingSaved != nil {
		sets = append(sets, "ranking_saved = ?")
		args = append(args, *patch.RankingSaved)
	}
	if patch.PaymentHistorySaved != nil {
		sets = append(sets, "payment_history_saved = ?")
		args = append(args, *patch.PaymentHistorySaved)
	}
	if patch.FeeConfig != nil {
		feeConfig, err := json.Marshal(patch.FeeConfig)
		if err != nil {
			return fmt.Errorf("failed to encode fee config: %w", err)
		}
		sets = append(sets, "fee_config_json = ?")
		args = append(args, string(feeConfig))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), op, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE operator_id = ? AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to merge session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return settlement.ErrSessionNotFound
	}
	for player, paid := range patch.PaidStatus {
		if err := upsertPaid(ctx, tx, op, id, player, paid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertPaid(ctx context.Context, tx *sql.Tx, op settlement.OperatorID, id settlement.SessionID, player string, paid bool) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_paid (operator_id, session_id, player, paid) VALUES (?, ?, ?, ?)
		ON CONFLICT(operator_id, session_id, player) DO UPDATE SET paid = excluded.paid`,
		op, id, player, paid)
	if err != nil {
		return fmt.Errorf("failed to set paid status for %s: %w", player, err)
	}
	return nil
}

// =============================================================================
// RANKING LEDGER
// =============================================================================

// GetMonthlyRanking returns an empty ledger when nothing was saved for the month.
func (s *Store) GetMonthlyRanking(ctx context.Context, op settlement.OperatorID, month settlement.MonthKey) (settlement.MonthlyRanking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := settlement.MonthlyRanking{Month: month, Entries: make(map[string]settlement.RankingEntry)}

	var lastUpdated string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_updated FROM ranking_ledgers WHERE operator_id = ? AND month = ?", op, month,
	).Scan(&lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to get ranking ledger: %w", err)
	}
	out.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT player, wins, score, total_games, total_balls, level
		FROM ranking_entries WHERE operator_id = ? AND month = ?`, op, month)
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

// MergeMonthlyRanking upserts the given players and stamps the ledger atomically.
func (s *Store) MergeMonthlyRanking(ctx context.Context, op settlement.OperatorID, month settlement.MonthKey, entries map[string]settlement.RankingEntry, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for player, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ranking_entries (operator_id, month, player, wins, score, total_games, total_balls, level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(operator_id, month, player) DO UPDATE SET
				wins = excluded.wins,
				score = excluded.score,
				total_games = excluded.total_games,
				total_balls = excluded.total_balls,
				level = excluded.level`,
			op, month, player, e.Wins, e.Score, e.TotalGames, e.TotalBalls, e.Level)
		if err != nil {
			return fmt.Errorf("failed to merge ranking entry %s: %w", player, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_ledgers (operator_id, month, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(operator_id, month) DO UPDATE SET last_updated = excluded.last_updated`,
		op, month, updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to stamp ranking ledger: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// PAYMENT HISTORY
// =============================================================================

// PutPaymentHistory replaces the record for the session.
func (s *Store) PutPaymentHistory(ctx context.Context, op settlement.OperatorID, rec settlement.PaymentHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := json.Marshal(rec.MembersData)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	feeConfig, err := json.Marshal(rec.FeeConfig)
	if err != nil {
		return fmt.Errorf("failed to encode fee config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO payment_history
		(operator_id, session_id, match_date, topic, total_overall, members_json, fee_config_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op, rec.SessionID, rec.MatchDate.Format(dateLayout), rec.Topic, rec.TotalOverall.String(),
		string(members), string(feeConfig), rec.SavedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to put payment history: %w", err)
	}
	return nil
}

// GetPaymentHistory loads the record for a session.
func (s *Store) GetPaymentHistory(ctx context.Context, op settlement.OperatorID, id settlement.SessionID) (*settlement.PaymentHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec                         settlement.PaymentHistoryRecord
		matchDate, total            string
		members, feeConfig, savedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, match_date, topic, total_overall, members_json, fee_config_json, saved_at
		FROM payment_history WHERE operator_id = ? AND session_id = ?`, op, id,
	).Scan(&rec.SessionID, &matchDate, &rec.Topic, &total, &members, &feeConfig, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrPaymentHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}

	rec.MatchDate, _ = time.Parse(dateLayout, matchDate)
	rec.SavedAt, _ = time.Parse(time.RFC3339, savedAt)
	if rec.TotalOverall, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to decode total: %w", err)
	}
	if err := json.Unmarshal([]byte(members), &rec.MembersData); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	if err := json.Unmarshal([]byte(feeConfig), &rec.FeeConfig); err != nil {
		return nil, fmt.Errorf("failed to decode fee config: %w", err)
	}
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Games are stored under their JSON field names so the blob reads the same
// as the API payload when inspected with a msgpack tool.
func encodeGames(games []settlement.Game) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(games); err != nil {
		return nil, fmt.Errorf("failed to encode games: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGames(blob []byte) ([]settlement.Game, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(blob))
	dec.SetCustomStructTag("json")
	var games []settlement.Game
	if err := dec.Decode(&games); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}
	return games, nil
}
