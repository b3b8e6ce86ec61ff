// Package handler wires HTTP requests to the service layer.
package handler

import (
	"strconv"

	"botfleet/backend/internal/middleware"
	"botfleet/backend/internal/model"
	"botfleet/backend/internal/service"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

type BotHandler struct {
	botService *service.BotService
}

func NewBotHandler(botService *service.BotService) *BotHandler {
	return &BotHandler{
		botService: botService,
	}
}

func actorAndBotID(c *gin.Context) (*jwt.Claims, int64, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return nil, 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		util.SendError(c, util.ErrBadRequest("Invalid bot ID"))
		return nil, 0, false
	}

	return actor, id, true
}

// CreateBot handles POST /api/v1/bots
func (h *BotHandler) CreateBot(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}

	var req model.BotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.botService.Create(c.Request.Context(), actor.ActorID, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, bot, "Bot created successfully")
}

// ListBots handles GET /api/v1/bots
func (h *BotHandler) ListBots(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}

	bots, err := h.botService.List(c.Request.Context(), actor)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bots)
}

// GetBot handles GET /api/v1/bots/:id
func (h *BotHandler) GetBot(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	bot, err := h.botService.Get(c.Request.Context(), actor, id)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bot)
}

// UpdateBot handles PUT /api/v1/bots/:id
func (h *BotHandler) UpdateBot(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	var req model.BotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.botService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bot)
}

// DeleteBot handles DELETE /api/v1/bots/:id
func (h *BotHandler) DeleteBot(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	if err := h.botService.Delete(c.Request.Context(), actor, id); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, gin.H{"deleted": true})
}

// StartBot handles POST /api/v1/bots/:id/start
func (h *BotHandler) StartBot(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	bot, err := h.botService.Start(c.Request.Context(), actor, id)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bot)
}

// StopBot handles POST /api/v1/bots/:id/stop
func (h *BotHandler) StopBot(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	bot, err := h.botService.Stop(c.Request.Context(), actor, id)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bot)
}

// ListTrades handles GET /api/v1/bots/:id/trades
func (h *BotHandler) ListTrades(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	trades, err := h.botService.Trades(c.Request.Context(), actor, id, limit)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, trades)
}

// GetSummary handles GET /api/v1/bots/:id/summary
func (h *BotHandler) GetSummary(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	summary, err := h.botService.Summary(c.Request.Context(), actor, id)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, summary)
}

// GetHealthAudit handles GET /api/v1/bots/:id/health
func (h *BotHandler) GetHealthAudit(c *gin.Context) {
	actor, id, ok := actorAndBotID(c)
	if !ok {
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	transitions, err := h.botService.HealthAudit(c.Request.Context(), actor, id, limit)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, transitions)
}
