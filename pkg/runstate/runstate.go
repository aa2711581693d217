// Package runstate は日付ごとの実行状態（not-running / running / failed / completed）を
// SQLite に記録し、同じ日付の重複実行を防ぎます。
//
// running の記録には所有者とハートビート時刻が付きます。ハートビートがリース期間を
// 過ぎて途絶えた記録だけが、異常終了した実行として回収されます。
package runstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// State は1日分の実行状態です。
type State string

const (
	NotRunning State = "not-running"
	Running    State = "running"
	Failed     State = "failed"
	Completed  State = "completed"
)

// DefaultLease は running の記録がハートビートなしで生存とみなされる期間です。
const DefaultLease = 10 * time.Minute

// interruptedMessage は回収された実行に記録するエラーです。
const interruptedMessage = "interrupted"

var (
	ErrAlreadyRunning   = errors.New("a run for this date is already in progress")
	ErrAlreadyCompleted = errors.New("this date has already been completed")
	// ErrRunMismatch は Finish に渡された runID が現在の実行と一致しないことを表します。
	ErrRunMismatch = errors.New("run id does not match the running run")
)

// Run は日付ごとの状態レコードです。
type Run struct {
	Date       string     `json:"date"`
	State      State      `json:"state"`
	RunID       string     `json:"run_id,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	date        TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	run_id       TEXT NOT NULL,
	owner        TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	started_at   INTEGER,
	heartbeat_at INTEGER,
	finished_at  INTEGER
)`

// leaseColumns は所有者とリースの導入前に作られた DB へ追加する列です。
var leaseColumns = map[string]string{
	"owner":        `ALTER TABLE runs ADD COLUMN owner TEXT NOT NULL DEFAULT ''`,
	"heartbeat_at": `ALTER TABLE runs ADD COLUMN heartbeat_at INTEGER`,
}

// Registry は実行状態のレジストリです。
type Registry struct {
	db    *sql.DB
	now   func() time.Time
	owner string
	lease time.Duration
}

// Option は Registry の設定を変更します。
type Option func(*Registry)

// WithOwner は running の記録に付ける所有者名を指定します。既定はホスト名とPIDです。
func WithOwner(owner string) Option {
	return func(r *Registry) {
		if owner != "" {
			r.owner = owner
		}
	}
}

// WithLease はハートビートが途絶えてから running を回収できるまでの期間を指定します。
func WithLease(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lease = d
		}
	}
}

// WithClock は現在時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Open は dsn の SQLite を開き、スキーマを用意します。":memory:" も使えます。
func Open(ctx context.Context, dsn string, opts ...Option) (*Registry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 状態遷移をトランザクション単位で直列化し、:memory: でも単一の DB を共有する
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=10000",
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	r := &Registry{db: db, now: time.Now, owner: defaultOwner(), lease: DefaultLease}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('runs')`)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for column, stmt := range leaseColumns {
		if existing[column] {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Owner はこの Registry が running の記録に付ける所有者名です。
func (r *Registry) Owner() string {
	return r.owner
}

// Lease はハートビートのリース期間です。
func (r *Registry) Lease() time.Duration {
	return r.lease
}

// expiredBefore はこの時刻より前のハートビートを期限切れとみなす境界です。
func (r *Registry) expiredBefore() int64 {
	return r.now().Add(-r.lease).UnixMilli()
}

// Close はデータベースを閉じます。
func (r *Registry) Close() error {
	return r.db.Close()
}

// Begin は date を running に遷移させ、新しい runID を返します。
// not-running と failed からのみ遷移でき、completed と、リースが生きている running は拒否します。
// ハートビートがリース期間を過ぎて途絶えた running は引き継ぎます。
func (r *Registry) Begin(ctx context.Context, date string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		state     State
		prevOwner string
		beat      sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, owner, COALESCE(heartbeat_at, started_at) FROM runs WHERE date = ?`, date,
	).Scan(&state, &prevOwner, &beat)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", err
	case state == Running && beat.Valid && beat.Int64 < r.expiredBefore():
		slog.WarnContext(ctx, "リースが切れた running を引き継ぎます", "date", date, "previous_owner", prevOwner, "owner", r.owner)
	case state == Running:
		return "", fmt.Errorf("%s (owner %s): %w", date, prevOwner, ErrAlreadyRunning)
	case state == Completed:
		return "", fmt.Errorf("%s: %w", date, ErrAlreadyCompleted)
	}

	runID := uuid.NewString()
	now := r.now().UnixMilli()
	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (date, state, run_id, owner, error, started_at, heartbeat_at, finished_at)
VALUES (?, ?, ?, ?, '', ?, ?, NULL)
ON CONFLICT(date) DO UPDATE SET
	state = excluded.state,
	run_id = excluded.run_id,
	owner = excluded.owner,
	error = '',
	started_at = excluded.started_at,
	heartbeat_at = excluded.heartbeat_at,
	finished_at = NULL`,
		date, Running, runID, r.owner, now, now)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// Heartbeat は実行中の runID のリースを延長します。
// runID がもう running でなければ ErrRunMismatch を返します。
func (r *Registry) Heartbeat(ctx context.Context, date, runID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET heartbeat_at = ? WHERE date = ? AND run_id = ? AND state = ?`,
		r.now().UnixMilli(), date, runID, Running)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s (%s): %w", date, runID, ErrRunMismatch)
	}
	return nil
}

// Finish は runErr が nil なら completed、そうでなければ failed に遷移させます。
func (r *Registry) Finish(ctx context.Context, date, runID string, runErr error) error {
	state, msg := Completed, ""
	if runErr != nil {
		state, msg = Failed, runErr.Error()
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE runs SET state = ?, error = ?, finished_at = ?
WHERE date = ? AND run_id = ? AND state = ?`,
		state, msg, r.now().UnixMilli(), date, runID, Running)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s (%s): %w", date, runID, ErrRunMismatch)
	}
	return nil
}

// Get は date の状態を返します。記録が無ければ not-running です。
func (r *Registry) Get(ctx context.Context, date string) (Run, error) {
	var (
		run      = Run{Date: date}
		started  sql.NullInt64
		beat     sql.NullInt64
		finished sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT state, run_id, owner, error, started_at, heartbeat_at, finished_at FROM runs WHERE date = ?`, date,
	).Scan(&run.State, &run.RunID, &run.Owner, &run.Error, &started, &beat, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		run.State = NotRunning
		return run, nil
	}
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = millis(started)
	run.HeartbeatAt = millis(beat)
	run.FinishedAt = millis(finished)
	return run, nil
}

// RecoverStale は、ハートビートがリース期間を過ぎて途絶えた running を failed に戻します。
// 別プロセスが実行中でハートビートを続けている記録には触れません。
func (r *Registry) RecoverStale(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE runs SET state = ?, error = ?, finished_at = ?
WHERE state = ? AND COALESCE(heartbeat_at, started_at, 0) < ?`,
		Failed, interruptedMessage, r.now().UnixMilli(), Running, r.expiredBefore())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func millis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
