//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"studysched/internal/plans"
	"studysched/internal/schedules"
	logx "studysched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

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

// ---- plans ----

func (s *sqliteStore) SavePlan(ctx context.Context, p *plans.SchedulePlan) error {
	body, err := p.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans(study_id, guid, label, body) VALUES(?,?,?,?)
		 ON CONFLICT(study_id, guid) DO UPDATE SET label=excluded.label, body=excluded.body`,
		p.StudyID, p.GUID, p.Label, string(body),
	)
	return err
}

func (s *sqliteStore) Plans(ctx context.Context, studyID string) ([]*plans.SchedulePlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM plans WHERE study_id = ? ORDER BY guid`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*plans.SchedulePlan
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		p, err := plans.Decode([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeletePlan(ctx context.Context, studyID, guid string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM plans WHERE study_id = ? AND guid = ?`, studyID, guid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- events ----

func (s *sqliteStore) RecordEvent(ctx context.Context, healthCode, eventID string, ts time.Time) error {
	if healthCode == "" || eventID == "" {
		return errors.New("storage: health code and event id are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(health_code, event_id, ts) VALUES(?,?,?)
		 ON CONFLICT(health_code, event_id) DO UPDATE SET ts=excluded.ts`,
		healthCode, eventID, ts.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Events(ctx context.Context, healthCode string) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, ts FROM events WHERE health_code = ?`, healthCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var id string
		var ms int64
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, err
		}
		out[id] = time.UnixMilli(ms).UTC()
	}
	return out, rows.Err()
}

// ---- activities ----

func (s *sqliteStore) SaveActivities(ctx context.Context, acts []*schedules.ScheduledActivity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range acts {
		body, err := json.Marshal(a)
		if err != nil {
			return err
		}
		// started_on/finished_on live in their own columns so a regeneration
		// upsert never clobbers participant actions.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO activities(health_code, guid, scheduled_on, body) VALUES(?,?,?,?)
			 ON CONFLICT(health_code, guid) DO UPDATE SET
			   scheduled_on=excluded.scheduled_on, body=excluded.body`,
			a.HealthCode, a.GUID, a.ScheduledOn.UnixMilli(), string(body),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Activities(ctx context.Context, healthCode string) ([]*schedules.ScheduledActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body, started_on, finished_on FROM activities
		 WHERE health_code = ? ORDER BY scheduled_on, guid`, healthCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schedules.ScheduledActivity
	for rows.Next() {
		var body string
		var started, finished int64
		if err := rows.Scan(&body, &started, &finished); err != nil {
			return nil, err
		}
		var a schedules.ScheduledActivity
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, err
		}
		a.StartedOn = started
		a.FinishedOn = finished
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateActivity(ctx context.Context, healthCode, guid string, startedOn, finishedOn int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET
		   started_on  = CASE WHEN ? != 0 THEN ? ELSE started_on END,
		   finished_on = CASE WHEN ? != 0 THEN ? ELSE finished_on END
		 WHERE health_code = ? AND guid = ?`,
		startedOn, startedOn, finishedOn, finishedOn, healthCode, guid,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
