package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchbay-dev/patchbay/pkg/autosave"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/persistence/file"
	"github.com/patchbay-dev/patchbay/pkg/services"
	"github.com/patchbay-dev/patchbay/pkg/viewport"
	"github.com/patchbay-dev/patchbay/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *graph.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := graph.NewStore(models.DesignerModeStrict, graph.DefaultCatalog(), logger)
	vp := viewport.New(1280, 720)
	storage := file.NewPersistence(t.TempDir())

	engine := autosave.NewEngine(store, vp, storage, nil, logger, autosave.Options{MinDelay: 10 * time.Millisecond})
	t.Cleanup(engine.Close)

	draftService := services.NewDraft(store, engine, storage, nil)
	handlers := web.NewAPIHandlers(draftService, store, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)

	d := app.Group("/drafts")
	d.Get("/", handlers.GetDrafts)
	d.Post("/", handlers.SaveDraft)
	d.Get("/:id", handlers.GetDraft)
	d.Post("/:id/load", handlers.LoadDraft)
	d.Delete("/:id", handlers.DeleteDraft)

	g := app.Group("/graph")
	g.Get("/", handlers.GetGraph)
	g.Post("/validate", handlers.ValidateGraph)
	g.Post("/nodes", handlers.AddNode)
	g.Patch("/nodes/:id/position", handlers.MoveNode)
	g.Patch("/nodes/:id", handlers.UpdateNode)
	g.Delete("/nodes/:id", handlers.DeleteNode)
	g.Post("/connections", handlers.Connect)
	g.Delete("/connections/:id", handlers.Disconnect)

	app.Get("/storage/stats", handlers.GetStorageStats)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestAPIHandlers_AddNode(t *testing.T) {
	app, store := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/graph/nodes", web.AddNodeRequest{Type: "transform", X: 50, Y: 60})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var node models.Node
	require.NoError(t, json.Unmarshal(body, &node))
	assert.Equal(t, "transform", node.Type)
	assert.NotEmpty(t, node.ID)
	require.Len(t, store.Nodes(), 1)

	resp, _ = doJSON(t, app, http.MethodPost, "/graph/nodes", web.AddNodeRequest{X: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Connect(t *testing.T) {
	app, store := setupTestApp(t)

	src := store.AddNode("trigger", 0, 0)
	dst := store.AddNode("log", 300, 0)

	req := web.ConnectRequest{
		SourceNodeID: src.ID,
		SourcePortID: src.Outputs[0].ID,
		TargetNodeID: dst.ID,
		TargetPortID: dst.Inputs[0].ID,
	}

	resp, body := doJSON(t, app, http.MethodPost, "/graph/connections", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result web.ConnectResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)

	// The same endpoints again are rejected with a reason, not an error.
	resp, body = doJSON(t, app, http.MethodPost, "/graph/connections", req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Success)
	assert.Equal(t, graph.ReasonAlreadyExists, result.Reason)
}

func TestAPIHandlers_DraftLifecycle(t *testing.T) {
	app, store := setupTestApp(t)

	store.AddNode("transform", 10, 10)

	resp, body := doJSON(t, app, http.MethodPost, "/drafts/", web.SaveDraftRequest{ID: "d1", Name: "Patch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var draft models.Draft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, "1", draft.Metadata.Version)
	assert.Len(t, draft.Nodes, 1)

	resp, body = doJSON(t, app, http.MethodGet, "/drafts/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "d1")

	resp, _ = doJSON(t, app, http.MethodPost, "/drafts/d1/load", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/drafts/d1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/drafts/d1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_SaveDraftValidation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/drafts/", web.SaveDraftRequest{Name: "No ID"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_MoveAndDeleteNode(t *testing.T) {
	app, store := setupTestApp(t)

	node := store.AddNode("transform", 0, 0)

	resp, body := doJSON(t, app, http.MethodPatch, "/graph/nodes/"+node.ID+"/position", web.MoveNodeRequest{X: 111, Y: 222})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var moved models.Node
	require.NoError(t, json.Unmarshal(body, &moved))
	assert.InDelta(t, 111, moved.X, 0.001)

	resp, _ = doJSON(t, app, http.MethodDelete, "/graph/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/graph/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ValidateGraph(t *testing.T) {
	app, store := setupTestApp(t)

	store.AddNode("transform", 0, 0)

	resp, body := doJSON(t, app, http.MethodPost, "/graph/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Zero(t, result.Removed)
}

func TestAPIHandlers_StorageStats(t *testing.T) {
	app, store := setupTestApp(t)

	store.AddNode("transform", 0, 0)
	resp, _ := doJSON(t, app, http.MethodPost, "/drafts/", web.SaveDraftRequest{ID: "d1", Name: "Patch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/storage/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "d1")
}
