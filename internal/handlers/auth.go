package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/himstay/internal/config"
	"github.com/example/himstay/internal/utils"
)

// AuthHandler issues operator tokens for the diagnostic and reconciliation
// endpoints. Portal-user authentication is handled by the portal itself.
type AuthHandler struct {
	cfg          *config.Config
	passwordHash string
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	hash, err := utils.HashPassword(cfg.OperatorPassword)
	if err != nil {
		log.Fatalf("failed to hash operator password: %v", err)
	}
	return &AuthHandler{cfg: cfg, passwordHash: hash}
}

type tokenRequest struct {
	OperatorID string `json:"operator_id"`
	Password   string `json:"password"`
}

// Token exchanges operator credentials for a JWT.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.OperatorID) != h.cfg.OperatorID || !utils.CheckPassword(h.passwordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, h.cfg.OperatorID, h.cfg.TokenExpires)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token})
}
