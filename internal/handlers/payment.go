package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/himstay/internal/config"
	"github.com/example/himstay/internal/himkosh"
	"github.com/example/himstay/internal/models"
	"github.com/example/himstay/internal/services"
	"github.com/example/himstay/internal/utils"
)

// PaymentHandler manages the treasury-gateway endpoints.
type PaymentHandler struct {
	db      *gorm.DB
	payment *services.PaymentService
	engine  *himkosh.Engine
	cfg     config.HimKoshConfig
}

func NewPaymentHandler(db *gorm.DB, engine *himkosh.Engine, cfg config.HimKoshConfig) *PaymentHandler {
	return &PaymentHandler{
		db:      db,
		payment: services.NewPaymentService(db, engine, cfg),
		engine:  engine,
		cfg:     cfg,
	}
}

type initiateRequest struct {
	ApplicationID string `json:"applicationId"`
}

// Initiate builds an encrypted payment request for an application and
// returns the redirect payload for the treasury payment page.
func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	applicationID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid applicationId")
	}

	result, err := h.payment.Initiate(c.Context(), applicationID)
	if err != nil {
		return writePaymentError(c, err)
	}

	return c.JSON(result)
}

// Callback receives the gateway's asynchronous form post and answers with
// a browser redirect to the application status page. The gateway channel
// expects a redirect or plain text, never JSON or a stack trace.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	encdata := strings.TrimSpace(c.FormValue("encdata"))
	if encdata == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing encdata")
	}

	result, err := h.payment.HandleCallback(c.Context(), encdata)
	if err != nil {
		switch {
		case errors.Is(err, himkosh.ErrChecksumMismatch):
			return c.Status(fiber.StatusBadRequest).SendString("checksum verification failed")
		case errors.Is(err, services.ErrTransactionNotFound):
			return c.Status(fiber.StatusNotFound).SendString("unknown transaction reference")
		case errors.Is(err, himkosh.ErrKeyNotConfigured):
			return c.Status(fiber.StatusInternalServerError).SendString("gateway not configured")
		default:
			var cryptoErr *himkosh.CryptoError
			if errors.As(err, &cryptoErr) {
				return c.Status(fiber.StatusBadRequest).SendString("could not decrypt payload")
			}
			return c.Status(fiber.StatusInternalServerError).SendString("callback processing failed")
		}
	}

	outcome := "failed"
	if result.Success {
		outcome = "success"
	}
	target := fmt.Sprintf("/application/%s?payment=%s&himgrn=%s", result.ApplicationID, outcome, result.HimgrnNo)
	return c.Redirect(target, fiber.StatusFound)
}

// Verify triggers a manual server-to-server reconciliation for one
// transaction.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	appRefNo := c.Params("appRefNo")

	result, err := h.payment.Verify(c.Context(), appRefNo)
	if err != nil {
		return writePaymentError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": result.Verified,
		"data":     result.Data,
	})
}

// ListTransactions returns payment-attempt history, optionally filtered.
func (h *PaymentHandler) ListTransactions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.HimkoshTransaction{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("transaction_status = ?", status)
	}
	if deptRefNo := strings.TrimSpace(c.Query("dept_ref_no")); deptRefNo != "" {
		query = query.Where("dept_ref_no = ?", deptRefNo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var txns []models.HimkoshTransaction
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&txns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetTransaction returns one transaction by its correlation reference.
func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	var txn models.HimkoshTransaction
	if err := h.db.First(&txn, "app_ref_no = ?", c.Params("appRefNo")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}
	return c.JSON(txn)
}

// ConfigStatus reports gateway configuration health for diagnostics.
func (h *PaymentHandler) ConfigStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"configured":   !h.cfg.Placeholder && h.engine.Configured(),
		"placeholder":  h.cfg.Placeholder,
		"keyLoaded":    h.engine.Configured(),
		"testMode":     h.cfg.TestMode,
		"merchantCode": h.cfg.MerchantCode,
		"paymentUrl":   h.cfg.PaymentURL,
	})
}

func writePaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrApplicationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrApplicationNotPayable):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrTransactionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrGatewayUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, himkosh.ErrKeyNotConfigured):
		return fiber.NewError(fiber.StatusInternalServerError, "payment gateway key is not configured")
	case errors.Is(err, himkosh.ErrChecksumMismatch):
		return fiber.NewError(fiber.StatusBadRequest, "checksum verification failed")
	default:
		var cryptoErr *himkosh.CryptoError
		if errors.As(err, &cryptoErr) {
			return fiber.NewError(fiber.StatusInternalServerError, "cryptographic operation failed")
		}
		return err
	}
}
