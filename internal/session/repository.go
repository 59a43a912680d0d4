package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/ranges"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, id string) error

	ListRanges(ctx context.Context, sessionID string) ([]ranges.Range, error)
	ReplaceRanges(ctx context.Context, sessionID string, rs []ranges.Range) error

	CreateMerge(ctx context.Context, m *Merge) error
	UpdateMerge(ctx context.Context, m *Merge) error
	GetMerge(ctx context.Context, id string) (*Merge, error)
	ListMerges(ctx context.Context, sessionID string, limit int) ([]*Merge, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, source, duration, duration_pinned, track_width_px, tick_interval_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Source, s.Duration, boolInt(s.DurationPinned), s.TrackWidthPx, s.TickIntervalMinutes,
		s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source, duration, duration_pinned, track_width_px, tick_interval_minutes, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, duration, duration_pinned, track_width_px, tick_interval_minutes, created_at, updated_at
		FROM sessions ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(scan func(dest ...any) error) (*Session, error) {
	var s Session
	var createdAt, updatedAt string
	var pinned int
	if err := scan(&s.ID, &s.Source, &s.Duration, &pinned, &s.TrackWidthPx, &s.TickIntervalMinutes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.DurationPinned = pinned != 0
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) UpdateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET source = ?, duration = ?, duration_pinned = ?, track_width_px = ?, tick_interval_minutes = ?, updated_at = ?
		WHERE id = ?
	`, s.Source, s.Duration, boolInt(s.DurationPinned), s.TrackWidthPx, s.TickIntervalMinutes, s.UpdatedAt.Format(time.RFC3339), s.ID)
	return err
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) ListRanges(ctx context.Context, sessionID string) ([]ranges.Range, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, start_time, end_time FROM ranges WHERE session_id = ? ORDER BY start_time ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rs []ranges.Range
	for rows.Next() {
		var rg ranges.Range
		if err := rows.Scan(&rg.ID, &rg.Start, &rg.End); err != nil {
			return nil, err
		}
		rs = append(rs, rg)
	}
	return rs, rows.Err()
}

// ReplaceRanges stores rs as the session's complete range snapshot.
func (r *SQLiteRepository) ReplaceRanges(ctx context.Context, sessionID string, rs []ranges.Range) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ranges WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete ranges: %w", err)
	}
	for _, rg := range rs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ranges (id, session_id, start_time, end_time) VALUES (?, ?, ?, ?)
		`, rg.ID, sessionID, rg.Start, rg.End); err != nil {
			return fmt.Errorf("insert range %s: %w", rg.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CreateMerge(ctx context.Context, m *Merge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merges (id, session_id, status, segment_count, discontinuities, duration, playlist, playlist_url, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.Status, m.SegmentCount, m.Discontinuities, m.Duration,
		nullString(m.Playlist), nullString(m.PlaylistURL), nullString(m.Error),
		m.CreatedAt.Format(time.RFC3339), m.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateMerge(ctx context.Context, m *Merge) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE merges SET status = ?, playlist = ?, playlist_url = ?, error = ?, updated_at = ? WHERE id = ?
	`, m.Status, nullString(m.Playlist), nullString(m.PlaylistURL), nullString(m.Error),
		m.UpdatedAt.Format(time.RFC3339), m.ID)
	return err
}

const mergeColumns = `id, session_id, status, segment_count, discontinuities, duration, playlist, playlist_url, error, created_at, updated_at`

func (r *SQLiteRepository) GetMerge(ctx context.Context, id string) (*Merge, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+mergeColumns+" FROM merges WHERE id = ?", id)
	m, err := scanMerge(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (r *SQLiteRepository) ListMerges(ctx context.Context, sessionID string, limit int) ([]*Merge, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+mergeColumns+`
		FROM merges WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var merges []*Merge
	for rows.Next() {
		m, err := scanMerge(rows.Scan)
		if err != nil {
			return nil, err
		}
		merges = append(merges, m)
	}
	return merges, rows.Err()
}

func scanMerge(scan func(dest ...any) error) (*Merge, error) {
	var m Merge
	var playlist, playlistURL, errMsg sql.NullString
	var createdAt, updatedAt string
	if err := scan(&m.ID, &m.SessionID, &m.Status, &m.SegmentCount, &m.Discontinuities, &m.Duration,
		&playlist, &playlistURL, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.Playlist = playlist.String
	m.PlaylistURL = playlistURL.String
	m.Error = errMsg.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &m, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
