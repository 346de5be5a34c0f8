package api

import (
	"context"
	"time"

	"kadan/internal/application"
	"kadan/internal/models"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "error": "database unreachable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

type LookupHandler struct {
	blocks   application.BlockService
	accounts application.AccountService
}

func NewLookupHandler(blocks application.BlockService, accounts application.AccountService) *LookupHandler {
	return &LookupHandler{blocks: blocks, accounts: accounts}
}

// Blocks answers whether any of the given attributes is actively blocked.
func (h *LookupHandler) Blocks(c *fiber.Ctx) error {
	guildID := c.Params("guild")
	candidates := models.UniqueCandidates([]models.BlockCandidate{
		{Kind: models.AttrDiscordID, Value: c.Query("discord_id")},
		{Kind: models.AttrAccountRef, Value: c.Query("memberNo")},
		{Kind: models.AttrNickname, Value: c.Query("nickname")},
	})
	if len(candidates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "one of discord_id, memberNo or nickname is required"})
	}

	hits, err := h.blocks.Lookup(c.UserContext(), guildID, candidates)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up blocks"})
	}
	if hits == nil {
		hits = []models.BlockedAttribute{}
	}
	return c.JSON(fiber.Map{"blocked": len(hits) > 0, "entries": hits})
}

func (h *LookupHandler) User(c *fiber.Ctx) error {
	overview, err := h.accounts.Overview(c.UserContext(), c.Params("guild"), c.Params("user"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load accounts"})
	}
	if overview.Primary == nil && len(overview.Secondaries) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	secondaries := overview.Secondaries
	if secondaries == nil {
		secondaries = []models.SecondarySummary{}
	}
	return c.JSON(fiber.Map{"primary": overview.Primary, "secondaries": secondaries})
}
