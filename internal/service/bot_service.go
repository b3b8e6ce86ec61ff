package service

import (
	"context"

	"github.com/go-playground/validator/v10"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/repository"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/jwt"
	"botfleet/backend/pkg/logger"
)

// BotService handles bot lifecycle: CRUD, start/stop and read-only queries.
// Start and stop flip the administrative status only; derived health is the
// monitor's business.
type BotService struct {
	bots     BotStore
	creds    CredentialStore
	trades   TradeStore
	health   HealthStore
	executor *Executor
	notifier Notifier
	validate *validator.Validate
}

// NewBotService creates a new bot service.
func NewBotService(
	bots BotStore,
	creds CredentialStore,
	trades TradeStore,
	health HealthStore,
	executor *Executor,
	notifier Notifier,
) *BotService {
	return &BotService{
		bots:     bots,
		creds:    creds,
		trades:   trades,
		health:   health,
		executor: executor,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Create validates and stores a new bot for a client.
func (s *BotService) Create(ctx context.Context, clientID string, req *model.BotRequest) (*model.Bot, error) {
	bot := &model.Bot{
		ClientID:            clientID,
		Name:                req.Name,
		Venue:               req.Venue,
		Symbol:              req.Symbol,
		BaseMint:            req.BaseMint,
		QuoteMint:           req.QuoteMint,
		BaseDecimals:        req.BaseDecimals,
		QuoteDecimals:       req.QuoteDecimals,
		Strategy:            req.Strategy,
		Spread:              req.Spread,
		Volume:              req.Volume,
		Delegated:           req.Delegated,
		OrchestratorProfile: req.OrchestratorProfile,
		CredentialID:        req.CredentialID,
	}

	if err := s.validateBot(ctx, bot); err != nil {
		return nil, err
	}

	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, util.ErrInternalServer("Failed to save bot")
	}

	logger.GetLogger().WithBot(bot.ID).Infof("Bot created: client=%s venue=%s strategy=%s", clientID, bot.Venue, bot.Strategy)
	return bot, nil
}

// Get returns one bot, scoped to the acting identity.
func (s *BotService) Get(ctx context.Context, actor *jwt.Claims, botID int64) (*model.Bot, error) {
	return s.ownedBot(ctx, actor, botID)
}

// List returns the bots visible to the acting identity.
func (s *BotService) List(ctx context.Context, actor *jwt.Claims) ([]*model.Bot, error) {
	if actor.Role == jwt.RoleOperator {
		// Operators see the whole fleet.
		running, err := s.bots.ListByStatus(ctx, model.BotStatusRunning)
		if err != nil {
			return nil, util.ErrInternalServer("Failed to list bots")
		}
		stopped, err := s.bots.ListByStatus(ctx, model.BotStatusStopped)
		if err != nil {
			return nil, util.ErrInternalServer("Failed to list bots")
		}
		return append(running, stopped...), nil
	}

	bots, err := s.bots.ListByClient(ctx, actor.ActorID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list bots")
	}
	return bots, nil
}

// Update replaces a bot's configuration. Refused while the bot is running.
func (s *BotService) Update(ctx context.Context, actor *jwt.Claims, botID int64, req *model.BotRequest) (*model.Bot, error) {
	bot, err := s.ownedBot(ctx, actor, botID)
	if err != nil {
		return nil, err
	}
	if bot.IsRunning() {
		return nil, util.ErrConflict("Stop the bot before changing its configuration")
	}

	oldVenue := bot.Venue

	bot.Name = req.Name
	bot.Venue = req.Venue
	bot.Symbol = req.Symbol
	bot.BaseMint = req.BaseMint
	bot.QuoteMint = req.QuoteMint
	bot.BaseDecimals = req.BaseDecimals
	bot.QuoteDecimals = req.QuoteDecimals
	bot.Strategy = req.Strategy
	bot.Spread = req.Spread
	bot.Volume = req.Volume
	bot.Delegated = req.Delegated
	bot.OrchestratorProfile = req.OrchestratorProfile
	bot.CredentialID = req.CredentialID

	if err := s.validateBot(ctx, bot); err != nil {
		return nil, err
	}

	// Config changed; health is unknown until re-evaluated.
	bot.Health = model.HealthUnknown
	bot.HealthMessage = ""

	if err := s.bots.Update(ctx, bot, "", oldVenue); err != nil {
		return nil, util.ErrInternalServer("Failed to update bot")
	}

	s.executor.ClearState(bot.ID)
	return bot, nil
}

// Delete removes a stopped bot and its runtime state.
func (s *BotService) Delete(ctx context.Context, actor *jwt.Claims, botID int64) error {
	bot, err := s.ownedBot(ctx, actor, botID)
	if err != nil {
		return err
	}
	if bot.IsRunning() {
		return util.ErrConflict("Stop the bot before deleting it")
	}

	if err := s.bots.Delete(ctx, botID); err != nil {
		return util.ErrInternalServer("Failed to delete bot")
	}

	s.executor.ClearState(botID)
	return nil
}

// Start flips the administrative status to running. Configuration is checked
// up front so an obviously broken bot is refused rather than started into an
// immediate health error.
func (s *BotService) Start(ctx context.Context, actor *jwt.Claims, botID int64) (*model.Bot, error) {
	bot, err := s.ownedBot(ctx, actor, botID)
	if err != nil {
		return nil, err
	}
	if bot.IsRunning() {
		return bot, nil
	}

	if cfgErr := ValidateBotConfig(bot); cfgErr != nil {
		return nil, cfgErr
	}

	if err := s.bots.UpdateStatus(ctx, botID, model.BotStatusRunning); err != nil {
		return nil, util.ErrInternalServer("Failed to start bot")
	}
	bot.Status = model.BotStatusRunning

	logger.GetLogger().WithBot(botID).Info("Bot started")
	s.notifyStatus(bot)
	return bot, nil
}

// Stop flips the administrative status to stopped and tears down runtime
// state. In-flight tick effects are suppressed by the executor's re-check.
func (s *BotService) Stop(ctx context.Context, actor *jwt.Claims, botID int64) (*model.Bot, error) {
	bot, err := s.ownedBot(ctx, actor, botID)
	if err != nil {
		return nil, err
	}
	if !bot.IsRunning() {
		return bot, nil
	}

	if err := s.bots.UpdateStatus(ctx, botID, model.BotStatusStopped); err != nil {
		return nil, util.ErrInternalServer("Failed to stop bot")
	}
	bot.Status = model.BotStatusStopped

	s.executor.ClearState(botID)

	logger.GetLogger().WithBot(botID).Info("Bot stopped")
	s.notifyStatus(bot)
	return bot, nil
}

// Trades returns the bot's recent trades, newest first.
func (s *BotService) Trades(ctx context.Context, actor *jwt.Claims, botID int64, limit int64) ([]*model.TradeRecord, error) {
	if _, err := s.ownedBot(ctx, actor, botID); err != nil {
		return nil, err
	}

	trades, err := s.trades.ListByBot(ctx, botID, limit)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list trades")
	}
	return trades, nil
}

// Summary aggregates the bot's activity for the current UTC day and overall.
func (s *BotService) Summary(ctx context.Context, actor *jwt.Claims, botID int64) (*model.TradeSummary, error) {
	bot, err := s.ownedBot(ctx, actor, botID)
	if err != nil {
		return nil, err
	}

	today, err := s.trades.ListByBotSince(ctx, botID, util.StartOfDayUTC(util.NowUTC()))
	if err != nil {
		return nil, util.ErrInternalServer("Failed to read today's trades")
	}

	all, err := s.trades.ListByBot(ctx, botID, 10000)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to read trade history")
	}

	summary := &model.TradeSummary{
		BotID:       botID,
		LastTradeAt: bot.LastTradeAt,
		TradesToday: len(today),
		TotalTrades: len(all),
	}
	for _, t := range today {
		summary.NotionalToday += t.Notional
	}
	for _, t := range all {
		summary.TotalNotional += t.Notional
	}

	return summary, nil
}

// HealthAudit returns the bot's recent health transitions, newest first.
func (s *BotService) HealthAudit(ctx context.Context, actor *jwt.Claims, botID int64, limit int64) ([]*model.HealthTransition, error) {
	if _, err := s.ownedBot(ctx, actor, botID); err != nil {
		return nil, err
	}

	transitions, err := s.health.ListByBot(ctx, botID, limit)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list health transitions")
	}
	return transitions, nil
}

// validateBot checks the request shape: venue resolves, strategy params are
// present and inside bounds, and the referenced credential exists and matches
// the venue.
func (s *BotService) validateBot(ctx context.Context, bot *model.Bot) error {
	v, err := venue.Resolve(bot.Venue)
	if err != nil {
		return util.ErrConfiguration(err.Error())
	}
	bot.Venue = string(v)

	if v.IsDEX() {
		if bot.BaseMint == "" || bot.QuoteMint == "" {
			return util.ErrValidation("DEX bots require base and quote token mints")
		}
		if bot.BaseDecimals <= 0 || bot.QuoteDecimals <= 0 {
			return util.ErrValidation("DEX bots require base and quote token decimals")
		}
	} else if bot.Symbol == "" {
		return util.ErrValidation("CEX bots require a trading symbol")
	}

	switch bot.Strategy {
	case model.StrategySpread:
		if bot.Spread == nil {
			return util.ErrValidation("Spread strategy requires spread parameters")
		}
		if err := s.validate.Struct(bot.Spread); err != nil {
			return util.NewAppErrorWithDetails(400, util.ErrCodeValidation, "Invalid spread parameters", err.Error())
		}
	case model.StrategyVolume:
		if bot.Volume == nil {
			return util.ErrValidation("Volume strategy requires volume parameters")
		}
		if err := s.validate.Struct(bot.Volume); err != nil {
			return util.NewAppErrorWithDetails(400, util.ErrCodeValidation, "Invalid volume parameters", err.Error())
		}
		if bot.Volume.PartialFillMode == "" {
			bot.Volume.PartialFillMode = model.PartialFillSkip
		}
	default:
		return util.ErrValidation("Strategy must be spread or volume")
	}

	if bot.Delegated {
		if bot.OrchestratorProfile == "" {
			return util.ErrValidation("Delegated bots require an orchestration profile")
		}
		return nil
	}

	if bot.CredentialID == 0 {
		return util.ErrValidation("A credential is required")
	}
	cred, err := s.creds.GetByID(ctx, bot.CredentialID)
	if err != nil {
		return util.ErrValidation("Referenced credential does not exist")
	}
	if cred.ClientID != bot.ClientID {
		return util.ErrForbidden("Credential belongs to a different client")
	}
	if cred.Venue != bot.Venue {
		return util.ErrValidation("Credential is for venue " + cred.Venue + ", bot trades on " + bot.Venue)
	}

	return nil
}

// ownedBot loads a bot and enforces the ownership scope: operators see every
// bot, clients only their own.
func (s *BotService) ownedBot(ctx context.Context, actor *jwt.Claims, botID int64) (*model.Bot, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, util.ErrNotFound("Bot not found")
		}
		return nil, util.ErrInternalServer("Failed to load bot")
	}

	if actor.Role != jwt.RoleOperator && bot.ClientID != actor.ActorID {
		// Do not reveal existence of other clients' bots.
		return nil, util.ErrNotFound("Bot not found")
	}

	return bot, nil
}

func (s *BotService) notifyStatus(bot *model.Bot) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyClient(bot.ClientID, model.EventBotStatus, map[string]interface{}{
		"bot_id": bot.ID,
		"status": bot.Status,
	})
}
