package scan

import (
	"errors"
	"io"
	"strconv"

	"puzzle-ledger/core/logger"
	"puzzle-ledger/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the scan pipeline.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the scan routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	scans := app.Group("/scans")
	scans.Post("/", h.HandleScan)
	scans.Post("/confirm", h.HandleConfirm)
	scans.Post("/rollback", h.HandleRollback)
	scans.Get("/", h.HandleHistory)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case inventory.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, inventory.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.logger, c)
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		l.Error("Scan request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleScan accepts a screenshot and runs it through the pipeline.
// @Summary Scan a screenshot
// @Description Analyze a puzzle screenshot and reconcile it against stored
// @Description inventory. With apply=false the response is a preview and
// @Description nothing is persisted.
// @Tags scans
// @Accept mpfd
// @Produce json
// @Param image formData file true "Screenshot"
// @Param external_id formData string true "External user identity"
// @Param display_name formData string false "Display name"
// @Param apply formData bool false "Apply changes immediately (default true)"
// @Success 200 {object} Outcome
// @Failure 400 {object} map[string]string
// @Router /scans [post]
func (h *Handler) HandleScan(c *fiber.Ctx) error {
	id := inventory.Identity{
		ExternalID:  c.FormValue("external_id"),
		DisplayName: c.FormValue("display_name"),
	}
	if id.ExternalID == "" {
		return h.fail(c, &inventory.ValidationError{Field: "external_id", Reason: "is required"})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return h.fail(c, &inventory.ValidationError{Field: "image", Reason: "file is required"})
	}
	src, err := file.Open()
	if err != nil {
		return h.fail(c, &inventory.ValidationError{Field: "image", Reason: "cannot open upload"})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return h.fail(c, &inventory.ValidationError{Field: "image", Reason: "cannot read upload"})
	}

	applyNow := true
	if raw := c.FormValue("apply"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return h.fail(c, &inventory.ValidationError{Field: "apply", Reason: "must be a boolean"})
		}
		applyNow = parsed
	}

	outcome, err := h.service.ProcessImage(c.Context(), id, file.Filename, data, applyNow)
	if err != nil {
		return h.fail(c, err)
	}

	l := logger.WithUser(logger.WithRayID(h.logger, c), id.ExternalID)
	l.Info("Scan request completed",
		zap.String("status", outcome.Status),
		zap.Bool("applied", outcome.Applied),
	)
	return c.JSON(outcome)
}

type confirmRequest struct {
	inventory.Identity
	ConfirmRequest
}

// HandleConfirm commits a previously previewed scan.
// @Summary Confirm a previewed scan
// @Tags scans
// @Accept json
// @Produce json
// @Success 200 {object} Outcome
// @Failure 400 {object} map[string]string
// @Router /scans/confirm [post]
func (h *Handler) HandleConfirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, &inventory.ValidationError{Field: "body", Reason: "cannot parse request"})
	}
	if req.ExternalID == "" {
		return h.fail(c, &inventory.ValidationError{Field: "external_id", Reason: "is required"})
	}

	outcome, err := h.service.ConfirmScan(c.Context(), req.Identity, req.ConfirmRequest)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(outcome)
}

type rollbackRequest struct {
	inventory.Identity
	ScanID uint   `json:"scan_id"`
	Scene  string `json:"scene"`
}

// HandleRollback reverses a committed scan by id or by scene.
// @Summary Roll back a scan
// @Tags scans
// @Accept json
// @Produce json
// @Success 200 {object} RollbackReceipt
// @Failure 404 {object} map[string]string "Scan not found or already rolled back"
// @Router /scans/rollback [post]
func (h *Handler) HandleRollback(c *fiber.Ctx) error {
	var req rollbackRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, &inventory.ValidationError{Field: "body", Reason: "cannot parse request"})
	}
	if req.ExternalID == "" {
		return h.fail(c, &inventory.ValidationError{Field: "external_id", Reason: "is required"})
	}

	receipt, err := h.service.RollbackScan(c.Context(), req.Identity, req.ScanID, req.Scene)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(receipt)
}

// HandleHistory lists the user's recent scan attempts.
// @Summary Scan history
// @Tags scans
// @Produce json
// @Param external_id query string true "External user identity"
// @Param limit query int false "Max records (default 20, cap 100)"
// @Success 200 {array} models.ScanRecord
// @Router /scans [get]
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	id := inventory.Identity{
		ExternalID:  c.Query("external_id"),
		DisplayName: c.Query("display_name"),
	}
	if id.ExternalID == "" {
		return h.fail(c, &inventory.ValidationError{Field: "external_id", Reason: "is required"})
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	records, err := h.service.History(c.Context(), id, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(records)
}
