package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "promobot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const timeFormat = time.RFC3339Nano

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// wrap tags backend failures so callers can match with errors.Is(ErrUnavailable).
func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *sqliteStore) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var (
		rec   UserRecord
		name  sql.NullString
		first string
		last  string
		stage string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, first_seen_at, last_seen_at, interaction_count, window_count, stage
		 FROM users WHERE user_id = ?`, userID).
		Scan(&rec.UserID, &name, &first, &last, &rec.InteractionCount, &rec.WindowCount, &stage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	rec.DisplayName = name.String
	rec.Stage = Stage(stage)
	if rec.FirstSeenAt, err = time.Parse(timeFormat, first); err != nil {
		return nil, wrap(err)
	}
	if rec.LastSeenAt, err = time.Parse(timeFormat, last); err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

func (s *sqliteStore) UpsertUser(ctx context.Context, rec UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, display_name, first_seen_at, last_seen_at, interaction_count, window_count, stage)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   display_name=excluded.display_name,
		   last_seen_at=excluded.last_seen_at,
		   interaction_count=excluded.interaction_count,
		   window_count=excluded.window_count,
		   stage=excluded.stage`,
		rec.UserID, nullStr(rec.DisplayName),
		rec.FirstSeenAt.Format(timeFormat), rec.LastSeenAt.Format(timeFormat),
		rec.InteractionCount, rec.WindowCount, string(rec.Stage),
	)
	return wrap(err)
}

func (s *sqliteStore) IncrementWindow(ctx context.Context, userID int64, now time.Time) (int, time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, time.Time{}, wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		count int
		seen  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT window_count, last_seen_at FROM users WHERE user_id = ?`, userID).
		Scan(&count, &seen)
	if err != nil {
		return 0, time.Time{}, wrap(err)
	}
	prevSeen, err := time.Parse(timeFormat, seen)
	if err != nil {
		return 0, time.Time{}, wrap(err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET window_count = window_count + 1, last_seen_at = ? WHERE user_id = ?`,
		now.Format(timeFormat), userID,
	); err != nil {
		return 0, time.Time{}, wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, time.Time{}, wrap(err)
	}
	return count + 1, prevSeen, nil
}

func (s *sqliteStore) ResetAllWindows(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET window_count = 0`)
	return wrap(err)
}

func (s *sqliteStore) ListUsersInStages(ctx context.Context, stages ...Stage) ([]int64, error) {
	if len(stages) == 0 {
		return nil, nil
	}
	ph := make([]string, len(stages))
	args := make([]any, len(stages))
	for i, st := range stages {
		ph[i] = "?"
		args[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM users WHERE stage IN (`+strings.Join(ph, ",")+`) ORDER BY user_id`,
		args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, wrap(rows.Err())
}

func (s *sqliteStore) AppendCampaign(ctx context.Context, rec CampaignRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns(name, message, recipient_count, sent_at) VALUES(?,?,?,?)`,
		rec.Name, rec.MessageText, rec.RecipientCount, rec.SentAt.Format(timeFormat),
	)
	return wrap(err)
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, wrap(err)
}

func (s *sqliteStore) CountUsersByStage(ctx context.Context, stage Stage) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE stage = ?`, string(stage)).Scan(&n)
	return n, wrap(err)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
