// Package postgresql provides PostgreSQL persistence for canvas drafts.
// Drafts are stored as JSONB documents, one row per draft key.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
	"github.com/patchbay-dev/patchbay/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects, migrates, and returns a PostgreSQL draft store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SaveDraft upserts the draft document.
func (p *Persistence) SaveDraft(ctx context.Context, draft *models.Draft) error {
	// Drafts in Postgres are always stored compact; JSONB normalizes
	// whitespace anyway.
	data, err := json.Marshal(draft)
	if err != nil {
		return persistence.NewDraftError("Save", draft.ID, err)
	}

	createdAt := draft.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	updatedAt := draft.Metadata.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO drafts (id, name, document, auto_saved, size_bytes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			auto_saved = EXCLUDED.auto_saved,
			size_bytes = EXCLUDED.size_bytes,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		draft.ID,
		draft.Name,
		data,
		models.IsAutoSaveID(draft.ID),
		len(data),
		draft.Metadata.Version,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}

	return nil
}

// DraftByID loads and schema-validates a draft document.
func (p *Persistence) DraftByID(ctx context.Context, id string) (*models.Draft, error) {
	var data []byte

	err := p.db.QueryRowContext(ctx, "SELECT document FROM drafts WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDraftError("Load", id, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to fetch draft %s: %w", id, err)
	}

	if err := models.ValidateDraftDocument(data); err != nil {
		return nil, persistence.NewDraftError("Load", id, err)
	}

	var draft models.Draft

	err = json.Unmarshal(data, &draft)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
	}

	return &draft, nil
}

// DeleteDraft removes the draft row.
func (p *Persistence) DeleteDraft(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for draft %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewDraftError("Delete", id, persistence.ErrDraftNotFound)
	}

	return nil
}

// Drafts lists summaries sorted by updated_at, newest first.
func (p *Persistence) Drafts(ctx context.Context) ([]*models.DraftSummary, error) {
	query := `
		SELECT id, name, version, auto_saved, size_bytes, updated_at
		FROM drafts
		ORDER BY updated_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var summaries []*models.DraftSummary

	for rows.Next() {
		summary := &models.DraftSummary{}

		err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Version,
			&summary.AutoSaved,
			&summary.SizeBytes,
			&summary.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft summary: %w", err)
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return summaries, nil
}

// StorageStats aggregates draft sizes with a single query.
func (p *Persistence) StorageStats(ctx context.Context) (*persistence.StorageStats, error) {
	stats := &persistence.StorageStats{}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(size_bytes), 0),
		       COUNT(*) FILTER (WHERE auto_saved)
		FROM drafts
	`

	err := p.db.QueryRowContext(ctx, query).Scan(&stats.DraftCount, &stats.TotalBytes, &stats.AutoSaveCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate storage stats: %w", err)
	}

	var largest string

	err = p.db.QueryRowContext(ctx, "SELECT id FROM drafts ORDER BY size_bytes DESC LIMIT 1").Scan(&largest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find largest draft: %w", err)
	}

	stats.LargestDraft = largest

	return stats, nil
}
