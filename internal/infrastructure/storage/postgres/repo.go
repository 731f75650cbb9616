package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  doc JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
  user_id TEXT PRIMARY KEY,
  blob BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  user_id TEXT NOT NULL,
  severity TEXT NOT NULL,
  kind TEXT NOT NULL,
  message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms);
`)
	return err
}

func (r *Repo) Append(ctx context.Context, user string, pos model.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// row lock serializes concurrent writers of the same ledger
	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM ledgers WHERE user_id=$1 FOR UPDATE`, user).Scan(&doc)
	positions := []model.Position{}
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(doc, &positions); err != nil {
			return fmt.Errorf("decode ledger of %s: %w", user, err)
		}
	}

	if err := upsertDoc(ctx, tx, user, append(positions, pos)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) LoadAll(ctx context.Context, user string) ([]model.Position, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM ledgers WHERE user_id=$1`, user).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Position{}, nil
	}
	if err != nil {
		return nil, err
	}

	positions := []model.Position{}
	if err := json.Unmarshal(doc, &positions); err != nil {
		return nil, fmt.Errorf("decode ledger of %s: %w", user, err)
	}
	return positions, nil
}

func (r *Repo) ReplaceAll(ctx context.Context, user string, positions []model.Position) error {
	return upsertDoc(ctx, r.db, user, positions)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDoc(ctx context.Context, e execer, user string, positions []model.Position) error {
	if positions == nil {
		positions = []model.Position{}
	}
	doc, err := json.Marshal(positions)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO ledgers(user_id, doc, updated_at) VALUES($1, $2::jsonb, now())
		ON CONFLICT(user_id) DO UPDATE SET doc=excluded.doc, updated_at=excluded.updated_at
	`, user, string(doc))
	return err
}

func (r *Repo) PutCredentials(ctx context.Context, user string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials(user_id, blob, updated_at) VALUES($1, $2, now())
		ON CONFLICT(user_id) DO UPDATE SET blob=excluded.blob, updated_at=excluded.updated_at
	`, user, blob)
	return err
}

func (r *Repo) GetCredentials(ctx context.Context, user string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM credentials WHERE user_id=$1`, user).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return blob, err
}

func (r *Repo) RaiseAlert(ctx context.Context, a port.Alert) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO alerts(ts_ms, user_id, severity, kind, message) VALUES($1, $2, $3, $4, $5)`,
		a.TS, a.User, a.Severity, a.Kind, a.Message)
	return err
}

// RecentAlerts newest first
func (r *Repo) RecentAlerts(ctx context.Context, user string, limit int) ([]port.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts_ms, user_id, severity, kind, message FROM alerts
		WHERE $1::text = '' OR user_id = $1
		ORDER BY ts_ms DESC, id DESC LIMIT $2
	`, user, limit)
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
	_ port.Storage   = (*Repo)(nil)
	_ port.AlertSink = (*Repo)(nil)
	_ port.AlertLog  = (*Repo)(nil)
)
