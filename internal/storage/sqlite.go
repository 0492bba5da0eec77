package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ycwei/probroll/internal/models"
)

// SQLiteStorage keeps the ledger in a sqlite database. WAL mode and a busy
// timeout let the dashboard read while the monitor writes.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

const timeLayout = time.RFC3339

// NewSQLiteStorage opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id            TEXT PRIMARY KEY,
		symbol        TEXT NOT NULL,
		expiration    TEXT NOT NULL,
		strike        REAL NOT NULL,
		side          TEXT NOT NULL,
		action        TEXT NOT NULL,
		quantity      INTEGER NOT NULL,
		entry_premium REAL NOT NULL DEFAULT 0,
		entry_spot    REAL NOT NULL DEFAULT 0,
		entry_date    TEXT NOT NULL,
		exit_date     TEXT,
		exit_reason   TEXT,
		status        TEXT NOT NULL,
		win_rate      REAL NOT NULL DEFAULT 0,
		prob_low      REAL NOT NULL DEFAULT 0,
		prob_high     REAL NOT NULL DEFAULT 0,
		usage_pct     REAL NOT NULL DEFAULT 0,
		exec_prob     REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Load is a no-op: the database is the ledger.
func (s *SQLiteStorage) Load() error { return nil }

// Save is a no-op: every mutation commits immediately.
func (s *SQLiteStorage) Save() error { return nil }

// ActivePositions sweeps expired rows, then returns the active ones.
func (s *SQLiteStorage) ActivePositions() []models.Position {
	today := s.now().UTC().Truncate(24 * time.Hour)
	_, _ = s.db.Exec(
		`UPDATE positions SET status = ?, exit_reason = ?, exit_date = ?
		 WHERE status = ? AND expiration < ?`,
		models.StatusClosed, ReasonExpired, s.now().UTC().Format(timeLayout),
		models.StatusActive, today.Format(timeLayout),
	)

	rows, err := s.db.Query(selectColumns+` FROM positions WHERE status = ? ORDER BY entry_date`, models.StatusActive)
	if err != nil {
		return nil
	}
	defer rows.Close()
	return scanPositions(rows)
}

// GetPositionByID returns the position with the given ID.
func (s *SQLiteStorage) GetPositionByID(id string) (*models.Position, bool) {
	row := s.db.QueryRow(selectColumns+` FROM positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if err != nil {
		return nil, false
	}
	return p, true
}

// AddPosition inserts a validated position.
func (s *SQLiteStorage) AddPosition(pos *models.Position) error {
	if pos == nil {
		return fmt.Errorf("position must not be nil")
	}
	if err := pos.Validate(); err != nil {
		return err
	}

	var exitDate, exitReason sql.NullString
	if !pos.ExitDate.IsZero() {
		exitDate = sql.NullString{String: pos.ExitDate.UTC().Format(timeLayout), Valid: true}
	}
	if pos.ExitReason != "" {
		exitReason = sql.NullString{String: pos.ExitReason, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO positions (id, symbol, expiration, strike, side, action, quantity,
			entry_premium, entry_spot, entry_date, exit_date, exit_reason, status,
			win_rate, prob_low, prob_high, usage_pct, exec_prob)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.Symbol, pos.Expiration.UTC().Format(timeLayout), pos.Strike,
		pos.Side, pos.Action, pos.Quantity,
		pos.EntryPremium, pos.EntrySpot, pos.EntryDate.UTC().Format(timeLayout),
		exitDate, exitReason, pos.Status,
		pos.WinRate, pos.ProbLow, pos.ProbHigh, pos.UsagePct, pos.ExecProb,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, pos.ID)
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// UpdateExecProb stores a freshly computed execution probability.
func (s *SQLiteStorage) UpdateExecProb(id string, prob float64) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("exec prob %.4f outside [0,1]", prob)
	}

	res, err := s.db.Exec(
		`UPDATE positions SET exec_prob = ? WHERE id = ? AND status = ?`,
		prob, id, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("update exec prob: %w", err)
	}
	return s.checkWriteHit(res, id)
}

// ClosePosition transitions a position to Closed with the given reason.
func (s *SQLiteStorage) ClosePosition(id, reason string) error {
	if reason == "" {
		return fmt.Errorf("close reason is required")
	}

	res, err := s.db.Exec(
		`UPDATE positions SET status = ?, exit_reason = ?, exit_date = ?
		 WHERE id = ? AND status = ?`,
		models.StatusClosed, reason, s.now().UTC().Format(timeLayout),
		id, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return s.checkWriteHit(res, id)
}

// checkWriteHit maps a zero-row update to not-found or already-closed.
func (s *SQLiteStorage) checkWriteHit(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRow(`SELECT status FROM positions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrPositionClosed, id)
}

// History returns every position, oldest first.
func (s *SQLiteStorage) History() []models.Position {
	rows, err := s.db.Query(selectColumns + ` FROM positions ORDER BY entry_date`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	return scanPositions(rows)
}

// Statistics summarizes the ledger.
func (s *SQLiteStorage) Statistics() *Statistics {
	return computeStatistics(s.History())
}

const selectColumns = `SELECT id, symbol, expiration, strike, side, action, quantity,
	entry_premium, entry_spot, entry_date, exit_date, exit_reason, status,
	win_rate, prob_low, prob_high, usage_pct, exec_prob`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var (
		p                     models.Position
		expiration, entryDate string
		exitDate, exitReason  sql.NullString
	)
	err := row.Scan(&p.ID, &p.Symbol, &expiration, &p.Strike, &p.Side, &p.Action, &p.Quantity,
		&p.EntryPremium, &p.EntrySpot, &entryDate, &exitDate, &exitReason, &p.Status,
		&p.WinRate, &p.ProbLow, &p.ProbHigh, &p.UsagePct, &p.ExecProb)
	if err != nil {
		return nil, err
	}

	if p.Expiration, err = time.Parse(timeLayout, expiration); err != nil {
		return nil, fmt.Errorf("parse expiration: %w", err)
	}
	if p.EntryDate, err = time.Parse(timeLayout, entryDate); err != nil {
		return nil, fmt.Errorf("parse entry date: %w", err)
	}
	if exitDate.Valid {
		if p.ExitDate, err = time.Parse(timeLayout, exitDate.String); err != nil {
			return nil, fmt.Errorf("parse exit date: %w", err)
		}
	}
	if exitReason.Valid {
		p.ExitReason = exitReason.String
	}
	return &p, nil
}

func scanPositions(rows *sql.Rows) []models.Position {
	var out []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 reports constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
