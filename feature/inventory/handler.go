package inventory

import (
	"errors"
	"strconv"

	"puzzle-ledger/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for inventory operations.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the inventory routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	inv := app.Group("/inventory")
	inv.Get("/", h.HandleList)
	inv.Get("/piece", h.HandleGetPiece)
	inv.Put("/piece/duplicates", h.HandleOverrideDuplicates)
	inv.Get("/missing", h.HandleMissing)
	inv.Delete("/", h.HandleClear)

	app.Post("/trades", h.HandleReportTrade)

	scenes := app.Group("/scenes")
	scenes.Get("/", h.HandleScenes)
	scenes.Get("/owners", h.HandleOwners)
}

func identityFromQuery(c *fiber.Ctx) Identity {
	return Identity{
		ExternalID:  c.Query("external_id"),
		DisplayName: c.Query("display_name"),
	}
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNoDuplicates):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.logger, c)
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		l.Error("Inventory request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleList returns a user's inventory.
// @Summary List inventory
// @Description List a user's pieces, optionally filtered by scene.
// @Tags inventory
// @Produce json
// @Param external_id query string true "External user identity"
// @Param scene query string false "Scene filter"
// @Success 200 {array} models.Piece
// @Router /inventory [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	id := identityFromQuery(c)
	if id.ExternalID == "" {
		return h.fail(c, validationErrorf("external_id", "is required"))
	}

	pieces, err := h.service.Inventory(c.Context(), id, c.Query("scene"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pieces)
}

// HandleGetPiece returns one piece by scene and slot.
// @Summary Get piece
// @Tags inventory
// @Produce json
// @Param external_id query string true "External user identity"
// @Param scene query string true "Scene name"
// @Param slot query int true "Slot index"
// @Success 200 {object} models.Piece
// @Failure 404 {object} map[string]string
// @Router /inventory/piece [get]
func (h *Handler) HandleGetPiece(c *fiber.Ctx) error {
	id := identityFromQuery(c)
	slot, err := strconv.Atoi(c.Query("slot"))
	if err != nil {
		return h.fail(c, validationErrorf("slot_index", "cannot parse %q", c.Query("slot")))
	}

	piece, svcErr := h.service.Piece(c.Context(), id, c.Query("scene"), slot)
	if svcErr != nil {
		return h.fail(c, svcErr)
	}
	return c.JSON(piece)
}

type overrideRequest struct {
	Identity
	Scene      string `json:"scene"`
	SlotIndex  int    `json:"slot_index"`
	Duplicates int    `json:"duplicates"`
}

// HandleOverrideDuplicates sets an explicit duplicate count (manual fix).
// @Summary Override duplicates
// @Description Manual correction; unlike a scan merge this may decrease the count.
// @Tags inventory
// @Accept json
// @Produce json
// @Success 200 {object} models.Piece
// @Failure 400 {object} map[string]string
// @Router /inventory/piece/duplicates [put]
func (h *Handler) HandleOverrideDuplicates(c *fiber.Ctx) error {
	var req overrideRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, validationErrorf("body", "cannot parse request: %v", err))
	}

	piece, err := h.service.OverrideDuplicates(c.Context(), req.Identity, req.Scene, req.SlotIndex, req.Duplicates)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(piece)
}

type tradeRequest struct {
	Identity
	Scene string `json:"scene"`
	Slot  string `json:"slot"`
}

// HandleReportTrade records a completed in-game trade.
// @Summary Report trade
// @Tags inventory
// @Accept json
// @Produce json
// @Success 200 {object} TradeReceipt
// @Failure 409 {object} map[string]string "No duplicates left"
// @Router /trades [post]
func (h *Handler) HandleReportTrade(c *fiber.Ctx) error {
	var req tradeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, validationErrorf("body", "cannot parse request: %v", err))
	}

	receipt, err := h.service.ReportTrade(c.Context(), req.Identity, req.Scene, req.Slot)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(receipt)
}

// HandleClear resets a user's inventory and scan history.
// @Summary Clear inventory
// @Description Delete a user's pieces and scan history, optionally one scene only. Irreversible.
// @Tags inventory
// @Produce json
// @Param external_id query string true "External user identity"
// @Param scene query string false "Limit the reset to one scene"
// @Success 200 {object} ClearReceipt
// @Failure 400 {object} map[string]string
// @Router /inventory [delete]
func (h *Handler) HandleClear(c *fiber.Ctx) error {
	id := identityFromQuery(c)
	if id.ExternalID == "" {
		return h.fail(c, validationErrorf("external_id", "is required"))
	}

	receipt, err := h.service.Clear(c.Context(), id, c.Query("scene"))
	if err != nil {
		return h.fail(c, err)
	}

	logger.WithUser(logger.WithRayID(h.logger, c), id.ExternalID).Info("Inventory reset",
		zap.String("scene", receipt.Scene),
		zap.Int64("pieces_deleted", receipt.InventoryDeleted),
		zap.Int64("scans_deleted", receipt.ScansDeleted),
	)
	return c.JSON(receipt)
}

// HandleMissing lists slots in a scene the user does not own.
// @Summary List missing pieces
// @Tags inventory
// @Produce json
// @Param external_id query string true "External user identity"
// @Param scene query string true "Scene name"
// @Success 200 {array} MissingPiece
// @Router /inventory/missing [get]
func (h *Handler) HandleMissing(c *fiber.Ctx) error {
	missing, err := h.service.Missing(c.Context(), identityFromQuery(c), c.Query("scene"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(missing)
}

// HandleScenes lists every known scene.
// @Summary List scenes
// @Tags inventory
// @Produce json
// @Success 200 {array} string
// @Router /scenes [get]
func (h *Handler) HandleScenes(c *fiber.Ctx) error {
	scenes, err := h.service.Scenes(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(scenes)
}

// HandleOwners lists users holding tradeable spares of a piece.
// @Summary Find owners with spares
// @Tags inventory
// @Produce json
// @Param scene query string true "Scene name"
// @Param slot query string true "Slot index"
// @Success 200 {array} SpareOwner
// @Router /scenes/owners [get]
func (h *Handler) HandleOwners(c *fiber.Ctx) error {
	owners, err := h.service.OwnersWithSpare(c.Context(), c.Query("scene"), c.Query("slot"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(owners)
}
