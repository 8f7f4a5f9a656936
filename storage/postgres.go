package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"waveanalyzer/logger"
)

// PostgresStore keeps projects and markers in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects with the DSN and creates the tables if needed
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	logger.Info("Connected to PostgreSQL project store")
	return &PostgresStore{db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	createProjectsTable := `
    CREATE TABLE IF NOT EXISTS projects (
        id UUID PRIMARY KEY,
        user_id TEXT,
        name VARCHAR(255) NOT NULL,
        song_url TEXT NOT NULL,
        seeker_position FLOAT DEFAULT 0,
        zoom_factor FLOAT DEFAULT 1.0,
        loop_start FLOAT,
        loop_end FLOAT,
        created_at TIMESTAMPTZ DEFAULT NOW() NOT NULL,
        updated_at TIMESTAMPTZ DEFAULT NOW() NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_projects_user ON projects (user_id);
    `

	createMarkersTable := `
    CREATE TABLE IF NOT EXISTS markers (
        id UUID PRIMARY KEY,
        project_id UUID NOT NULL,
        note TEXT,
        timestamp FLOAT NOT NULL,
        created_at TIMESTAMPTZ DEFAULT NOW() NOT NULL,
        updated_at TIMESTAMPTZ DEFAULT NOW() NOT NULL,
        CONSTRAINT fk_project FOREIGN KEY (project_id) REFERENCES projects (id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_markers_project ON markers (project_id);
    `

	if _, err := db.ExecContext(ctx, createProjectsTable); err != nil {
		return fmt.Errorf("creating projects table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createMarkersTable); err != nil {
		return fmt.Errorf("creating markers table: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const projectColumns = `id::text, COALESCE(user_id, ''), name, song_url, seeker_position, zoom_factor, loop_start, loop_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p                  Project
		loopStart, loopEnd sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.SongURL, &p.SeekerPosition, &p.ZoomFactor,
		&loopStart, &loopEnd, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if loopStart.Valid {
		v := loopStart.Float64
		p.LoopStart = &v
	}
	if loopEnd.Valid {
		v := loopEnd.Float64
		p.LoopEnd = &v
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// CreateProject inserts p, assigning an ID when it has none
func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("nil project")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.ZoomFactor == 0 {
		p.ZoomFactor = 1
	}

	err := s.db.QueryRowContext(ctx, `
        INSERT INTO projects (id, user_id, name, song_url, seeker_position, zoom_factor, loop_start, loop_end)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`,
		p.ID, nullString(p.UserID), p.Name, p.SongURL, p.SeekerPosition, p.ZoomFactor,
		nullFloat(p.LoopStart), nullFloat(p.LoopEnd),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject loads one project
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return p, nil
}

// ListProjects returns the projects of userID, newest first. An empty
// userID lists every project.
func (s *PostgresStore) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// DeleteProject removes the project; its markers cascade
func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.execOne(ctx, `DELETE FROM projects WHERE id = $1`, id)
}

// UpdateProjectView saves seeker, zoom and loop range
func (s *PostgresStore) UpdateProjectView(ctx context.Context, id string, view ProjectView) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.execOne(ctx, `
        UPDATE projects
        SET seeker_position = $2, zoom_factor = $3, loop_start = $4, loop_end = $5, updated_at = NOW()
        WHERE id = $1`,
		id, view.SeekerPosition, view.ZoomFactor, nullFloat(view.LoopStart), nullFloat(view.LoopEnd))
}

// ListMarkers returns the markers of a project ordered by timestamp
func (s *PostgresStore) ListMarkers(ctx context.Context, projectID string) ([]Marker, error) {
	markers := make([]Marker, 0)
	if _, err := uuid.Parse(projectID); err != nil {
		return markers, nil
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id::text, project_id::text, COALESCE(note, ''), timestamp, created_at, updated_at
        FROM markers WHERE project_id = $1
        ORDER BY timestamp, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing markers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Note, &m.Timestamp, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning marker: %w", err)
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// CreateMarker inserts m under an existing project
func (s *PostgresStore) CreateMarker(ctx context.Context, m *Marker) error {
	if m == nil {
		return errors.New("nil marker")
	}
	if _, err := uuid.Parse(m.ProjectID); err != nil {
		return ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	err := s.db.QueryRowContext(ctx, `
        INSERT INTO markers (id, project_id, note, timestamp)
        SELECT $1, id, $3, $4 FROM projects WHERE id = $2
        RETURNING created_at, updated_at`,
		m.ID, m.ProjectID, m.Note, m.Timestamp,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting marker: %w", err)
	}
	return nil
}

// UpdateMarker rewrites the note and timestamp of m
func (s *PostgresStore) UpdateMarker(ctx context.Context, m *Marker) error {
	if m == nil {
		return errors.New("nil marker")
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		return ErrNotFound
	}

	var updated time.Time
	err := s.db.QueryRowContext(ctx, `
        UPDATE markers SET note = $2, timestamp = $3, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at`,
		m.ID, m.Note, m.Timestamp,
	).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating marker: %w", err)
	}
	m.UpdatedAt = updated
	return nil
}

// DeleteMarker removes a marker
func (s *PostgresStore) DeleteMarker(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.execOne(ctx, `DELETE FROM markers WHERE id = $1`, id)
}

// execOne runs a statement that must touch exactly one row
func (s *PostgresStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
