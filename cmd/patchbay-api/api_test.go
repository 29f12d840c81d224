package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchbay-dev/patchbay/pkg/autosave"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence/file"
	"github.com/patchbay-dev/patchbay/pkg/viewport"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	store := graph.NewStore(models.DesignerModeStrict, graph.DefaultCatalog(), logger)
	vp := viewport.New(1280, 720)

	engine := autosave.NewEngine(store, vp, persistence, nil, logger, autosave.Options{})
	t.Cleanup(engine.Close)

	api := NewAPI(logger, store, vp, engine, persistence, nil)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Patchbay API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetDrafts_Empty(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/drafts/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Drafts     []any `json:"drafts"`
		TotalCount int   `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Empty(t, payload.Drafts)
	assert.Zero(t, payload.TotalCount)
}

func TestAPI_GraphEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/graph/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "strict")
}
