package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"

	"recap/pkg/logger"
	"recap/pkg/model"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type PostgresStorage struct {
	pool *pgxpool.Pool
}

// New PostgreSQL storage instance
func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")

	// Run migrations
	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")

	return &PostgresStorage{pool: pool}, nil
}

// Executing database migrations
func runMigrations(databaseURL string) error {
	// Get absolute path to migrations directory
	migrationsPath, err := filepath.Abs("migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Create file URL from path (works on both Windows and Unix)
	var migrationsURL string
	if runtime.GOOS == "windows" {
		u := &url.URL{
			Scheme: "file",
			Path:   filepath.ToSlash(migrationsPath),
		}
		migrationsURL = u.String()
	} else {
		migrationsURL = fmt.Sprintf("file://%s", migrationsPath)
	}

	logger.Info("Running migrations", zap.String("path", migrationsURL))

	// Create a standard database connection for migrations
	db := stdlib.OpenDB(*parseConfig(databaseURL))
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	// Create migrate instance
	m, err := migrate.NewWithDatabaseInstance(
		migrationsURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	// Run migrations up
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply")
	} else {
		logger.Info("Migrations applied successfully")
	}

	return nil
}

// Parses database URL into pgx config
func parseConfig(databaseURL string) *pgx.ConnConfig {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", zap.Error(err))
	}
	return config
}

// Closes the database connection pool
func (s *PostgresStorage) Close() {
	s.pool.Close()
}

// FetchRecording retrieves a recording by its ID, nil if absent
func (s *PostgresStorage) FetchRecording(ctx context.Context, id string) (*model.Recording, error) {
	query := `
		SELECT id, status, file_path, retry_count, error_message,
		       recording_type_id, context, created_at, updated_at
		FROM recordings
		WHERE id = $1`

	var rec model.Recording
	row := s.pool.QueryRow(ctx, query, id)

	err := row.Scan(
		&rec.ID,
		&rec.Status,
		&rec.FilePath,
		&rec.RetryCount,
		&rec.ErrorMessage,
		&rec.RecordingTypeID,
		&rec.Context,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	return &rec, nil
}

// UpdateStatus updates a recording's status and error message
func (s *PostgresStorage) UpdateStatus(ctx context.Context, id string, status model.RecordingStatus, errorMessage *string) error {
	query := `
		UPDATE recordings
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update recording status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording not found")
	}

	return nil
}

// IncrementRetryCount bumps the persisted retry counter
func (s *PostgresStorage) IncrementRetryCount(ctx context.Context, id string) error {
	query := `
		UPDATE recordings
		SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording not found")
	}

	return nil
}

// ResetRetryCount zeroes the retry counter for manual retry
func (s *PostgresStorage) ResetRetryCount(ctx context.Context, id string) error {
	query := `
		UPDATE recordings
		SET retry_count = 0, updated_at = NOW()
		WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset retry count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording not found")
	}

	return nil
}

// FetchPendingRecordings retrieves all recordings not in a terminal state
func (s *PostgresStorage) FetchPendingRecordings(ctx context.Context) ([]*model.Recording, error) {
	query := `
		SELECT id, status, file_path, retry_count, error_message,
		       recording_type_id, context, created_at, updated_at
		FROM recordings
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, model.RecordingStatusComplete, model.RecordingStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*model.Recording
	for rows.Next() {
		var rec model.Recording
		err := rows.Scan(
			&rec.ID,
			&rec.Status,
			&rec.FilePath,
			&rec.RetryCount,
			&rec.ErrorMessage,
			&rec.RecordingTypeID,
			&rec.Context,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recordings: %w", err)
	}

	return recordings, nil
}

// CreateTranscript inserts a new transcript
func (s *PostgresStorage) CreateTranscript(ctx context.Context, transcript *model.Transcript) error {
	query := `
		INSERT INTO transcripts (id, recording_id, full_text, segments, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		transcript.ID,
		transcript.RecordingID,
		transcript.FullText,
		transcript.Segments,
		transcript.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	return nil
}

// FetchTranscript retrieves a transcript by recording ID, nil if absent
func (s *PostgresStorage) FetchTranscript(ctx context.Context, recordingID string) (*model.Transcript, error) {
	query := `
		SELECT id, recording_id, full_text, segments, embedding, created_at
		FROM transcripts
		WHERE recording_id = $1`

	var transcript model.Transcript
	row := s.pool.QueryRow(ctx, query, recordingID)

	err := row.Scan(
		&transcript.ID,
		&transcript.RecordingID,
		&transcript.FullText,
		&transcript.Segments,
		&transcript.Embedding,
		&transcript.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return &transcript, nil
}

// CreateSummary inserts a new summary
func (s *PostgresStorage) CreateSummary(ctx context.Context, summary *model.Summary) error {
	query := `
		INSERT INTO summaries (id, recording_id, text, prompt_template, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		summary.ID,
		summary.RecordingID,
		summary.Text,
		summary.PromptTemplate,
		summary.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}

	return nil
}

// FetchSummary retrieves a summary by recording ID, nil if absent
func (s *PostgresStorage) FetchSummary(ctx context.Context, recordingID string) (*model.Summary, error) {
	query := `
		SELECT id, recording_id, text, prompt_template, embedding, created_at
		FROM summaries
		WHERE recording_id = $1`

	var summary model.Summary
	row := s.pool.QueryRow(ctx, query, recordingID)

	err := row.Scan(
		&summary.ID,
		&summary.RecordingID,
		&summary.Text,
		&summary.PromptTemplate,
		&summary.Embedding,
		&summary.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &summary, nil
}

// CreateTask inserts one extracted task
func (s *PostgresStorage) CreateTask(ctx context.Context, task *model.ExtractedTask) error {
	query := `
		INSERT INTO tasks (id, recording_id, description, contact_id, due_date, priority, source_quote, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		task.ID,
		task.RecordingID,
		task.Description,
		task.ContactID,
		task.DueDate,
		task.Priority,
		task.SourceQuote,
		task.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// FetchRecordingType retrieves a prompt-template configuration, nil if absent
func (s *PostgresStorage) FetchRecordingType(ctx context.Context, id string) (*model.RecordingType, error) {
	query := `
		SELECT id, name, prompt_template, created_at
		FROM recording_types
		WHERE id = $1`

	var rt model.RecordingType
	row := s.pool.QueryRow(ctx, query, id)

	err := row.Scan(
		&rt.ID,
		&rt.Name,
		&rt.PromptTemplate,
		&rt.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recording type: %w", err)
	}

	return &rt, nil
}

// FetchSpeakers retrieves the expected speakers for a recording
func (s *PostgresStorage) FetchSpeakers(ctx context.Context, recordingID string) ([]*model.Speaker, error) {
	query := `
		SELECT id, recording_id, speaker_number, name, contact_id
		FROM speakers
		WHERE recording_id = $1
		ORDER BY speaker_number ASC`

	rows, err := s.pool.Query(ctx, query, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get speakers: %w", err)
	}
	defer rows.Close()

	var speakers []*model.Speaker
	for rows.Next() {
		var sp model.Speaker
		err := rows.Scan(
			&sp.ID,
			&sp.RecordingID,
			&sp.SpeakerNumber,
			&sp.Name,
			&sp.ContactID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan speaker: %w", err)
		}
		speakers = append(speakers, &sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate speakers: %w", err)
	}

	return speakers, nil
}

// SaveTranscriptEmbedding attaches an embedding vector to a transcript
func (s *PostgresStorage) SaveTranscriptEmbedding(ctx context.Context, recordingID string, embedding []float32) error {
	query := `
		UPDATE transcripts
		SET embedding = $2
		WHERE recording_id = $1`

	result, err := s.pool.Exec(ctx, query, recordingID, embedding)
	if err != nil {
		return fmt.Errorf("failed to save transcript embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("transcript not found")
	}

	return nil
}

// SaveSummaryEmbedding attaches an embedding vector to a summary
func (s *PostgresStorage) SaveSummaryEmbedding(ctx context.Context, recordingID string, embedding []float32) error {
	query := `
		UPDATE summaries
		SET embedding = $2
		WHERE recording_id = $1`

	result, err := s.pool.Exec(ctx, query, recordingID, embedding)
	if err != nil {
		return fmt.Errorf("failed to save summary embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("summary not found")
	}

	return nil
}
