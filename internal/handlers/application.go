package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/himstay/internal/models"
)

// ApplicationHandler exposes the minimal application surface the payment
// core needs: intake of a fee-assessed application and status reads. The
// full registration workflow (scrutiny, inspection, officer review) lives
// in the portal, not here.
type ApplicationHandler struct {
	db *gorm.DB
}

func NewApplicationHandler(db *gorm.DB) *ApplicationHandler {
	return &ApplicationHandler{db: db}
}

type createApplicationRequest struct {
	ApplicantName string  `json:"applicant_name"`
	District      string  `json:"district"`
	PropertyName  string  `json:"property_name"`
	TotalFee      float64 `json:"total_fee"`
}

// CreateApplication registers a fee-assessed application awaiting payment.
func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var req createApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.ApplicantName) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "applicant_name is required")
	}
	if strings.TrimSpace(req.District) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "district is required")
	}
	if req.TotalFee <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "total_fee must be positive")
	}

	app := models.Application{
		ApplicationNo: generateApplicationNo(),
		ApplicantName: strings.TrimSpace(req.ApplicantName),
		District:      strings.TrimSpace(req.District),
		PropertyName:  strings.TrimSpace(req.PropertyName),
		TotalFee:      req.TotalFee,
		Status:        models.ApplicationStatusPaymentPending,
	}

	if err := h.db.Create(&app).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(app)
}

// GetApplication returns one application with its certificate, if minted.
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid application id")
	}

	var app models.Application
	if err := h.db.First(&app, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "application not found")
		}
		return err
	}

	var cert models.Certificate
	certErr := h.db.First(&cert, "application_id = ?", id.String()).Error

	response := fiber.Map{"application": app}
	if certErr == nil {
		response["certificate"] = cert
	}
	return c.JSON(response)
}

// ListDDOMappings returns the district to disbursement-code table.
func (h *ApplicationHandler) ListDDOMappings(c *fiber.Ctx) error {
	var mappings []models.DistrictDDOMapping
	if err := h.db.Order("district asc").Find(&mappings).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": mappings})
}

type createDDOMappingRequest struct {
	District string `json:"district"`
	DDOCode  string `json:"ddo_code"`
	Treasury string `json:"treasury"`
}

// CreateDDOMapping upserts a district's disbursement code.
func (h *ApplicationHandler) CreateDDOMapping(c *fiber.Ctx) error {
	var req createDDOMappingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.District == "" || req.DDOCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "district and ddo_code are required")
	}

	var mapping models.DistrictDDOMapping
	err := h.db.First(&mapping, "district = ?", req.District).Error
	switch {
	case err == nil:
		mapping.DDOCode = req.DDOCode
		mapping.Treasury = req.Treasury
		if err := h.db.Save(&mapping).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		mapping = models.DistrictDDOMapping{
			District: req.District,
			DDOCode:  req.DDOCode,
			Treasury: req.Treasury,
		}
		if err := h.db.Create(&mapping).Error; err != nil {
			return err
		}
	default:
		return err
	}

	return c.JSON(mapping)
}

func generateApplicationNo() string {
	return fmt.Sprintf("HSTAY-%d-%s", time.Now().Year(), strings.ToUpper(uuid.NewString()[:8]))
}
