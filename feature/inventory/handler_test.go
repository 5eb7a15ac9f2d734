package inventory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupApp(t *testing.T) (*fiber.App, *inventory.Store) {
	t.Helper()

	store := setupStore(t)
	app := fiber.New()
	feature := inventory.NewFeature(store, zap.NewNop())
	require.NoError(t, feature.Load(app))
	return app, store
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, dest))
}

func TestHandleList(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 1, 3, 2))
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Winter Cabin", 1, 4, 0))

	req := httptest.NewRequest("GET", "/inventory?external_id=disc-1&display_name=Alice", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var pieces []models.Piece
	decodeBody(t, resp, &pieces)
	assert.Len(t, pieces, 2)

	// Scene filter
	req = httptest.NewRequest("GET", "/inventory?external_id=disc-1&scene=Winter%20Cabin", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	decodeBody(t, resp, &pieces)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Winter Cabin", pieces[0].Scene)
}

func TestHandleList_MissingIdentity(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest("GET", "/inventory", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetPiece_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest("GET", "/inventory/piece?external_id=disc-1&scene=Ocean%20View&slot=1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleOverrideDuplicates(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 1, 3, 5))

	payload := `{"external_id":"disc-1","display_name":"Alice","scene":"Ocean View","slot_index":1,"duplicates":0}`
	req := httptest.NewRequest("PUT", "/inventory/piece/duplicates", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var piece models.Piece
	decodeBody(t, resp, &piece)
	assert.Equal(t, 0, piece.Duplicates)
}

func TestHandleReportTrade_Conflict(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 1, 3, 0))

	payload := `{"external_id":"disc-1","scene":"Ocean View","slot":"1"}`
	req := httptest.NewRequest("POST", "/trades", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestHandleReportTrade(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 2, 3, 3))

	payload := `{"external_id":"disc-1","scene":"ocean view","slot":"slot 2"}`
	req := httptest.NewRequest("POST", "/trades", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var receipt inventory.TradeReceipt
	decodeBody(t, resp, &receipt)
	assert.Equal(t, 3, receipt.OldDuplicates)
	assert.Equal(t, 2, receipt.NewDuplicates)
}

func TestHandleMissingAndScenes(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	alice, err := store.GetOrCreateUser(ctx, "disc-a", "Alice")
	require.NoError(t, err)
	bob, err := store.GetOrCreateUser(ctx, "disc-b", "Bob")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, bob.ID, "Ocean View", 1, 3, 0))
	require.NoError(t, store.UpsertPiece(ctx, alice.ID, "Ocean View", 2, 4, 0))

	req := httptest.NewRequest("GET", "/inventory/missing?external_id=disc-a&scene=Ocean%20View", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var missing []inventory.MissingPiece
	decodeBody(t, resp, &missing)
	require.Len(t, missing, 1)
	assert.Equal(t, 1, missing[0].SlotIndex)

	req = httptest.NewRequest("GET", "/scenes", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var scenes []string
	decodeBody(t, resp, &scenes)
	assert.Equal(t, []string{"Ocean View"}, scenes)
}

func TestHandleOwners(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 1, 3, 2))

	req := httptest.NewRequest("GET", fmt.Sprintf("/scenes/owners?scene=%s&slot=%s", "Ocean%20View", "1"), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var owners []inventory.SpareOwner
	decodeBody(t, resp, &owners)
	require.Len(t, owners, 1)
	assert.Equal(t, "disc-1", owners[0].ExternalID)
}

func TestHandleClear(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, "disc-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Ocean View", 1, 3, 2))
	require.NoError(t, store.UpsertPiece(ctx, user.ID, "Winter Cabin", 1, 4, 0))

	req := httptest.NewRequest("DELETE", "/inventory?external_id=disc-1&scene=Ocean%20View", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var receipt inventory.ClearReceipt
	decodeBody(t, resp, &receipt)
	assert.Equal(t, "Ocean View", receipt.Scene)
	assert.Equal(t, int64(1), receipt.InventoryDeleted)
	assert.Zero(t, receipt.ScansDeleted)

	pieces, err := store.ListInventory(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Winter Cabin", pieces[0].Scene)

	// Full reset without a scene.
	req = httptest.NewRequest("DELETE", "/inventory?external_id=disc-1", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &receipt)
	assert.Equal(t, int64(1), receipt.InventoryDeleted)

	// Identity is mandatory.
	req = httptest.NewRequest("DELETE", "/inventory", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
