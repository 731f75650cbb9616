package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS ledgers (
  user_id TEXT PRIMARY KEY,
  doc TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
  user_id TEXT PRIMARY KEY,
  blob BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  futures_symbol TEXT NOT NULL,
  basis_pct REAL NOT NULL,
  daily_funding REAL NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts_ms);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);

CREATE TABLE IF NOT EXISTS alerts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  user_id TEXT NOT NULL,
  severity TEXT NOT NULL,
  kind TEXT NOT NULL,
  message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms);
`)
	return err
}

// ========== Ledger ==========

func (r *Repo) Append(ctx context.Context, user string, pos model.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	positions, err := loadDoc(ctx, tx, user)
	if err != nil {
		return err
	}
	if err := writeDoc(ctx, tx, user, append(positions, pos)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) LoadAll(ctx context.Context, user string) ([]model.Position, error) {
	return loadDoc(ctx, r.db, user)
}

func (r *Repo) ReplaceAll(ctx context.Context, user string, positions []model.Position) error {
	return writeDoc(ctx, r.db, user, positions)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadDoc(ctx context.Context, q queryer, user string) ([]model.Position, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM ledgers WHERE user_id=?`, user).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Position{}, nil
	}
	if err != nil {
		return nil, err
	}

	positions := []model.Position{}
	if err := json.Unmarshal([]byte(doc), &positions); err != nil {
		return nil, fmt.Errorf("decode ledger of %s: %w", user, err)
	}
	return positions, nil
}

func writeDoc(ctx context.Context, q queryer, user string, positions []model.Position) error {
	if positions == nil {
		positions = []model.Position{}
	}
	doc, err := json.Marshal(positions)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO ledgers(user_id, doc, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		doc=excluded.doc, updated_at=excluded.updated_at
	`, user, string(doc), time.Now().UnixMilli())
	return err
}

// ========== Credentials ==========

func (r *Repo) PutCredentials(ctx context.Context, user string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials(user_id, blob, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		blob=excluded.blob, updated_at=excluded.updated_at
	`, user, blob, time.Now().UnixMilli())
	return err
}

func (r *Repo) GetCredentials(ctx context.Context, user string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM credentials WHERE user_id=?`, user).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return blob, err
}

// ========== Signals & alerts ==========

func (r *Repo) PublishSignal(ctx context.Context, opp *model.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return err
	}
	ts := opp.Snapshot.TakenAt.UnixMilli()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signals(ts_ms, symbol, futures_symbol, basis_pct, daily_funding, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, ts, opp.Snapshot.PerpSymbol, opp.Snapshot.FuturesSymbol, opp.Signal.BasisPct,
		opp.Snapshot.DailyFundingRate, string(payload), time.Now().UnixMilli())
	return err
}

func (r *Repo) RaiseAlert(ctx context.Context, a port.Alert) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO alerts(ts_ms, user_id, severity, kind, message) VALUES(?, ?, ?, ?, ?)`,
		a.TS, a.User, a.Severity, a.Kind, a.Message)
	return err
}

// RecentAlerts newest first
func (r *Repo) RecentAlerts(ctx context.Context, user string, limit int) ([]port.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts_ms, user_id, severity, kind, message FROM alerts
		WHERE ? = '' OR user_id = ?
		ORDER BY ts_ms DESC, id DESC LIMIT ?
	`, user, user, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.Alert
	for rows.Next() {
		var a port.Alert
		if err := rows.Scan(&a.TS, &a.User, &a.Severity, &a.Kind, &a.Message); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var (
	_ port.Storage    = (*Repo)(nil)
	_ port.SignalSink = (*Repo)(nil)
	_ port.AlertSink  = (*Repo)(nil)
	_ port.AlertLog   = (*Repo)(nil)
)
