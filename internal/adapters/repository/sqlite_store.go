package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/pkg/logger"
)

// SQLiteStore implements Store on database/sql with the modernc driver.
type SQLiteStore struct {
	db           *sql.DB
	logger       logger.Logger
	now          func() time.Time
	maxOpenConns int
}

var _ Store = (*SQLiteStore)(nil)

// Open connects to dsn, applies pragmas and creates the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		logger:       logger.Nop(),
		now:          time.Now,
		maxOpenConns: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info(ctx, "database ready", logger.String("dsn", dsn))
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertGameMaster inserts or replaces a GM.
func (s *SQLiteStore) UpsertGameMaster(ctx context.Context, gm model.GameMaster) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_master (id, name, email, is_active, is_available) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email,
			is_active = excluded.is_active, is_available = excluded.is_available`,
		gm.ID, gm.Name, gm.Email, gm.IsActive, gm.IsAvailable)
	if err != nil {
		return fmt.Errorf("upsert game master %s: %w", gm.ID, err)
	}
	return nil
}

// UpsertAvailability replaces the slot list for (GM, date).
func (s *SQLiteStore) UpsertAvailability(ctx context.Context, a model.Availability) error {
	slots, err := json.Marshal(nonNil(a.TimeSlots))
	if err != nil {
		return fmt.Errorf("encode time slots: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO availability (gm_id, date, time_slots) VALUES (?, ?, ?)
		ON CONFLICT(gm_id, date) DO UPDATE SET time_slots = excluded.time_slots`,
		a.GMID, a.Date, string(slots))
	if err != nil {
		return fmt.Errorf("upsert availability %s/%s: %w", a.GMID, a.Date, err)
	}
	return nil
}

// UpsertCompetency sets the level for (GM, game).
func (s *SQLiteStore) UpsertCompetency(ctx context.Context, c model.Competency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO competency (gm_id, game_id, level) VALUES (?, ?, ?)
		ON CONFLICT(gm_id, game_id) DO UPDATE SET level = excluded.level`,
		c.GMID, c.GameID, c.Level)
	if err != nil {
		return fmt.Errorf("upsert competency %s/%s: %w", c.GMID, c.GameID, err)
	}
	return nil
}

// UpsertGame inserts or replaces a catalog game.
func (s *SQLiteStore) UpsertGame(ctx context.Context, g model.Game) error {
	var brk sql.NullInt64
	if g.MinimumBreakMinutes != nil {
		brk = sql.NullInt64{Int64: int64(*g.MinimumBreakMinutes), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game (id, name, average_duration, minimum_break_minutes) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, average_duration = excluded.average_duration,
			minimum_break_minutes = excluded.minimum_break_minutes`,
		g.ID, g.Name, g.AverageDuration, brk)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", g.ID, err)
	}
	return nil
}

// UpsertGameMapping inserts or replaces a title pattern.
func (s *SQLiteStore) UpsertGameMapping(ctx context.Context, m model.GameMapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_mapping (pattern, game_id, game_name, average_duration, is_active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			game_id = excluded.game_id, game_name = excluded.game_name,
			average_duration = excluded.average_duration, is_active = excluded.is_active`,
		m.Pattern, m.GameID, m.GameName, m.AverageDuration, m.IsActive)
	if err != nil {
		return fmt.Errorf("upsert game mapping %q: %w", m.Pattern, err)
	}
	return nil
}

// UpsertActivity inserts or replaces an activity. An empty status is stored
// as pending. An empty ID is rejected with ErrMissingID.
func (s *SQLiteStore) UpsertActivity(ctx context.Context, a model.Activity) error {
	if a.ID == "" {
		return fmt.Errorf("upsert activity %q: %w", a.Title, ErrMissingID)
	}
	status := a.Status
	if status == "" {
		status = model.StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, title, date, start_time, end_time, assigned_gm_id, status) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, date = excluded.date,
			start_time = excluded.start_time, end_time = excluded.end_time,
			assigned_gm_id = excluded.assigned_gm_id, status = excluded.status`,
		a.ID, a.Title, a.Date, a.StartTime, a.EndTime, nullString(a.AssignedGMID), string(status))
	if err != nil {
		return fmt.Errorf("upsert activity %s: %w", a.ID, err)
	}
	return nil
}

const activityColumns = "id, title, date, start_time, end_time, assigned_gm_id, status"

// GetActivity returns one activity or ErrNotFound.
func (s *SQLiteStore) GetActivity(ctx context.Context, id string) (model.Activity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+activityColumns+" FROM activity WHERE id = ?", id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Activity{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Activity{}, fmt.Errorf("get activity %s: %w", id, err)
	}
	return a, nil
}

// ListUnassigned implements Store.
func (s *SQLiteStore) ListUnassigned(ctx context.Context, from, to string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity
		WHERE status = ? AND (assigned_gm_id IS NULL OR assigned_gm_id = '')
			AND (? = '' OR date >= ?) AND (? = '' OR date <= ?)
		ORDER BY date, start_time, id`,
		string(model.StatusPending), from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("list unassigned activities: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanActivity)
}

// ActiveGameMappings implements gamematch.Catalog.
func (s *SQLiteStore) ActiveGameMappings(ctx context.Context) ([]model.GameMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, game_id, game_name, average_duration, is_active
		FROM game_mapping WHERE is_active = 1 ORDER BY pattern`)
	if err != nil {
		return nil, fmt.Errorf("list game mappings: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (model.GameMapping, error) {
		var m model.GameMapping
		err := sc.Scan(&m.Pattern, &m.GameID, &m.GameName, &m.AverageDuration, &m.IsActive)
		return m, err
	})
}

// LoadSnapshot reads everything the engine evaluates against.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (assignment.Snapshot, error) {
	var (
		snap assignment.Snapshot
		err  error
	)
	if snap.GameMasters, err = s.listGameMasters(ctx); err != nil {
		return snap, err
	}
	if snap.Availabilities, err = s.listAvailabilities(ctx); err != nil {
		return snap, err
	}
	if snap.Competencies, err = s.listCompetencies(ctx); err != nil {
		return snap, err
	}
	if snap.Games, err = s.listGames(ctx); err != nil {
		return snap, err
	}
	if snap.Activities, err = s.listBlockingActivities(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *SQLiteStore) listGameMasters(ctx context.Context) ([]model.GameMaster, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, is_active, is_available FROM game_master ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list game masters: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (model.GameMaster, error) {
		var gm model.GameMaster
		err := sc.Scan(&gm.ID, &gm.Name, &gm.Email, &gm.IsActive, &gm.IsAvailable)
		return gm, err
	})
}

func (s *SQLiteStore) listAvailabilities(ctx context.Context) ([]model.Availability, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT gm_id, date, time_slots FROM availability ORDER BY gm_id, date")
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (model.Availability, error) {
		var (
			a   model.Availability
			raw string
		)
		if err := sc.Scan(&a.GMID, &a.Date, &raw); err != nil {
			return a, err
		}
		if err := json.Unmarshal([]byte(raw), &a.TimeSlots); err != nil {
			// Undecodable rows keep an empty list, which no event matches.
			s.logger.Warn(ctx, "undecodable time slots",
				logger.String("gm_id", a.GMID),
				logger.String("date", a.Date),
				logger.Error(err),
			)
			a.TimeSlots = nil
		}
		return a, nil
	})
}

func (s *SQLiteStore) listCompetencies(ctx context.Context) ([]model.Competency, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT gm_id, game_id, level FROM competency ORDER BY gm_id, game_id")
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (model.Competency, error) {
		var c model.Competency
		err := sc.Scan(&c.GMID, &c.GameID, &c.Level)
		return c, err
	})
}

func (s *SQLiteStore) listGames(ctx context.Context) ([]model.Game, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, average_duration, minimum_break_minutes FROM game ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (model.Game, error) {
		var (
			g   model.Game
			brk sql.NullInt64
		)
		if err := sc.Scan(&g.ID, &g.Name, &g.AverageDuration, &brk); err != nil {
			return g, err
		}
		if brk.Valid {
			v := int(brk.Int64)
			g.MinimumBreakMinutes = &v
		}
		return g, nil
	})
}

func (s *SQLiteStore) listBlockingActivities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity
		WHERE assigned_gm_id IS NOT NULL AND assigned_gm_id != '' AND status != ?
		ORDER BY date, start_time, id`,
		string(model.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("list assigned activities: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanActivity)
}

// AssignActivity implements Store. It fails with ErrNotAssignable when the
// activity is missing, already staffed or no longer pending.
func (s *SQLiteStore) AssignActivity(ctx context.Context, activityID, gmID, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE activity SET assigned_gm_id = ?, status = ?
		WHERE id = ? AND status = ? AND (assigned_gm_id IS NULL OR assigned_gm_id = '')`,
		gmID, string(model.StatusAssigned), activityID, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("assign activity %s: %w", activityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign activity %s: %w", activityID, err)
	}
	if n == 0 {
		return fmt.Errorf("activity %s: %w", activityID, ErrNotAssignable)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO assignment_log (run_id, activity_id, gm_id, assigned_at) VALUES (?, ?, ?, ?)",
		runID, activityID, gmID, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("log assignment %s: %w", activityID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment %s: %w", activityID, err)
	}
	return nil
}

// AssignmentLog lists entries for runID, or every entry when runID is empty.
func (s *SQLiteStore) AssignmentLog(ctx context.Context, runID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, activity_id, gm_id, assigned_at FROM assignment_log
		WHERE ? = '' OR run_id = ? ORDER BY id`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("list assignment log: %w", err)
	}
	defer rows.Close()
	return collect(rows, func(sc scanner) (LogEntry, error) {
		var (
			e  LogEntry
			at string
		)
		if err := sc.Scan(&e.RunID, &e.ActivityID, &e.GMID, &at); err != nil {
			return e, err
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return e, fmt.Errorf("parse assigned_at %q: %w", at, err)
		}
		e.AssignedAt = t
		return e, nil
	})
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM game_master),
			(SELECT COUNT(*) FROM game_master WHERE is_active = 1),
			(SELECT COUNT(*) FROM game),
			(SELECT COUNT(*) FROM game_mapping WHERE is_active = 1),
			(SELECT COUNT(*) FROM activity WHERE status = ?),
			(SELECT COUNT(*) FROM activity WHERE status = ?),
			(SELECT COUNT(*) FROM assignment_log)`,
		string(model.StatusPending), string(model.StatusAssigned),
	).Scan(&st.GameMasters, &st.ActiveGameMasters, &st.Games, &st.GameMappings,
		&st.Pending, &st.Assigned, &st.LoggedAssignments)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(sc scanner) (model.Activity, error) {
	var (
		a      model.Activity
		gmID   sql.NullString
		status string
	)
	if err := sc.Scan(&a.ID, &a.Title, &a.Date, &a.StartTime, &a.EndTime, &gmID, &status); err != nil {
		return a, err
	}
	a.AssignedGMID = gmID.String
	a.Status = model.ActivityStatus(status)
	return a, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
