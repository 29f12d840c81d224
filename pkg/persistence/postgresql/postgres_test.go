package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
	"github.com/patchbay-dev/patchbay/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

// setupTestDB starts (or reuses) a throwaway Postgres container and
// returns a migrated persistence layer against it.
func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("patchbay_test"),
			postgres.WithUsername("patchbay"),
			postgres.WithPassword("patchbay"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		summaries, _ := p.Drafts(ctx)
		for _, s := range summaries {
			_ = p.DeleteDraft(ctx, s.ID)
		}

		_ = p.Close(ctx)
	})

	return p, ctx
}

func testDraft(id, name string) *models.Draft {
	now := time.Now().UTC().Truncate(time.Second)

	return &models.Draft{
		ID:   id,
		Name: name,
		Nodes: []*models.Node{
			{
				ID:      "n1",
				Type:    "transform",
				X:       10,
				Y:       20,
				Outputs: []*models.Port{{ID: "out", Direction: models.PortDirectionOutput, DataType: models.DataTypeAny}},
			},
		},
		Connections:     []*models.Connection{},
		CanvasTransform: models.CanvasTransform{X: 5, Y: -5, K: 1.25},
		DesignerMode:    models.DesignerModeRelaxed,
		Metadata: models.DraftMetadata{
			CreatedAt: now,
			UpdatedAt: now,
			Version:   "1",
		},
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	p, ctx := setupTestDB(t)

	draft := testDraft("pg-rt", "Round Trip")
	require.NoError(t, p.SaveDraft(ctx, draft))

	loaded, err := p.DraftByID(ctx, "pg-rt")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, loaded.ID)
	assert.Equal(t, draft.Name, loaded.Name)
	assert.Equal(t, draft.Nodes, loaded.Nodes)
	assert.Equal(t, draft.CanvasTransform, loaded.CanvasTransform)
}

func TestPostgresUpsert(t *testing.T) {
	p, ctx := setupTestDB(t)

	draft := testDraft("pg-up", "First")
	require.NoError(t, p.SaveDraft(ctx, draft))

	draft.Name = "Second"
	draft.Metadata.Version = "2"
	require.NoError(t, p.SaveDraft(ctx, draft))

	loaded, err := p.DraftByID(ctx, "pg-up")
	require.NoError(t, err)
	assert.Equal(t, "Second", loaded.Name)
	assert.Equal(t, "2", loaded.Metadata.Version)
}

func TestPostgresMissingDraft(t *testing.T) {
	p, ctx := setupTestDB(t)

	_, err := p.DraftByID(ctx, "missing")
	assert.True(t, persistence.IsDraftNotFound(err))
	assert.True(t, persistence.IsDraftNotFound(p.DeleteDraft(ctx, "missing")))
}

func TestPostgresListAndStats(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.SaveDraft(ctx, testDraft("pg-a", "A")))
	require.NoError(t, p.SaveDraft(ctx, testDraft("autosave-pg", "Auto")))

	summaries, err := p.Drafts(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	stats, err := p.StorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DraftCount)
	assert.Equal(t, 1, stats.AutoSaveCount)
	assert.Positive(t, stats.TotalBytes)
	assert.NotEmpty(t, stats.LargestDraft)
}
