package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/logger"
)

// HealthMonitor derives per-bot health on its own loop, fully decoupled from
// the scheduler: its own cadence, its own venue sessions, and no authority
// over administrative status. A bot the monitor marks stale or broken keeps
// running until an operator stops it.
type HealthMonitor struct {
	bots     BotStore
	creds    CredentialStore
	trades   TradeStore
	health   HealthStore
	sessions SessionProvider
	notifier Notifier
	interval time.Duration

	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHealthMonitor creates the health monitor. The session provider must not
// be shared with the scheduler.
func NewHealthMonitor(
	bots BotStore,
	creds CredentialStore,
	trades TradeStore,
	health HealthStore,
	sessions SessionProvider,
	notifier Notifier,
	interval time.Duration,
) *HealthMonitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &HealthMonitor{
		bots:     bots,
		creds:    creds,
		trades:   trades,
		health:   health,
		sessions: sessions,
		notifier: notifier,
		interval: interval,
		now:      util.NowUTC,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the monitor loop until Stop is called or the context is
// cancelled. Blocks; callers run it in a goroutine.
func (m *HealthMonitor) Start(ctx context.Context) {
	log := logger.GetLogger()
	log.Infof("Health monitor started: check interval %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.doneCh)

	for {
		select {
		case <-ctx.Done():
			log.Info("Health monitor stopping: context cancelled")
			return
		case <-m.stopCh:
			log.Info("Health monitor stopping")
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it.
func (m *HealthMonitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// CheckAll evaluates every running bot. A failure evaluating one bot never
// stops the cycle for the rest.
func (m *HealthMonitor) CheckAll(ctx context.Context) {
	bots, err := m.bots.ListByStatus(ctx, model.BotStatusRunning)
	if err != nil {
		logger.GetLogger().Errorf("Health monitor failed to list running bots: %v", err)
		return
	}

	for _, bot := range bots {
		status, message := m.Evaluate(ctx, bot)
		m.apply(ctx, bot, status, message)
	}
}

// Evaluate derives one bot's health: configuration completeness first, then
// the activity probe, then trade-cadence staleness.
func (m *HealthMonitor) Evaluate(ctx context.Context, bot *model.Bot) (string, string) {
	if err := ValidateBotConfig(bot); err != nil {
		return model.HealthError, err.Message
	}

	if !bot.Delegated {
		cred, err := m.creds.GetByID(ctx, bot.CredentialID)
		if err != nil {
			return model.HealthError, "Credential not found for this bot"
		}

		v, _ := venue.Resolve(bot.Venue)
		if v.IsDEX() && cred.WalletAddress == "" {
			return model.HealthError, "No wallet address found for this bot"
		}

		if v.IsDEX() {
			if status, message, ok := m.probeActivity(ctx, bot, cred.Version); !ok {
				return status, message
			}
		}
	}

	return m.checkCadence(ctx, bot)
}

// probeActivity asks the venue for recent activity and shape-validates the
// result before using it. ok=false carries a definitive status.
func (m *HealthMonitor) probeActivity(ctx context.Context, bot *model.Bot, credVersion int) (string, string, bool) {
	sess, err := m.sessions.GetOrCreate(ctx, bot, credVersion)
	if err != nil {
		if venue.Classify(err) == venue.FailAuth {
			return model.HealthError, "Venue rejected the stored credentials", false
		}
		// Unreachable venue is not conclusive; fall through to cadence checks.
		return "", "", true
	}

	pctx, cancel := ProbeContext(ctx)
	defer cancel()

	raw, supported, err := sess.RecentActivity(pctx, 10)
	if !supported {
		return "", "", true
	}
	if err != nil {
		logger.GetLogger().WithBot(bot.ID).Warnf("Activity probe failed: %v", err)
		return "", "", true
	}

	if _, verr := validateProbeResult(raw); verr != nil {
		logger.GetLogger().WithBot(bot.ID).Errorf("Activity probe returned malformed data: %v", verr)
		return model.HealthError, "Activity probe returned an unexpected result", false
	}

	return "", "", true
}

// validateProbeResult checks the undecoded signature list has the expected
// shape and extracts the signature strings. Anything else is rejected before
// it can be indexed into.
func validateProbeResult(raw interface{}) ([]string, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}

	signatures := make([]string, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("entry %d: expected an object, got %T", i, entry)
		}
		sig, ok := obj["signature"].(string)
		if !ok || sig == "" {
			return nil, fmt.Errorf("entry %d: missing signature field", i)
		}
		signatures = append(signatures, sig)
	}

	return signatures, nil
}

// checkCadence compares the bot's last activity against its expected cadence.
// Volume bots are judged by their last trade, spread bots by their last
// successful tick (quotes can rest unfilled indefinitely).
func (m *HealthMonitor) checkCadence(ctx context.Context, bot *model.Bot) (string, string) {
	ref := bot.LastHeartbeat
	if bot.Strategy == model.StrategyVolume {
		ref = bot.LastTradeAt
	}

	if ref == nil {
		return model.HealthUnknown, "Awaiting first activity"
	}

	cadence := bot.ExpectedCadence()
	age := m.now().Sub(util.ToUTC(*ref))
	if age > cadence {
		// A volume bot that already hit today's notional target stops trading
		// until the next UTC day; that silence is expected, not staleness.
		if bot.Strategy == model.StrategyVolume && m.dailyTargetReached(ctx, bot) {
			return model.HealthHealthy, ""
		}
		return model.HealthStale, fmt.Sprintf("No activity for %s (expected within %s)",
			age.Round(time.Minute), cadence.Round(time.Minute))
	}

	return model.HealthHealthy, ""
}

// dailyTargetReached reports whether the bot has already executed its full
// daily notional target today (UTC day).
func (m *HealthMonitor) dailyTargetReached(ctx context.Context, bot *model.Bot) bool {
	if bot.Volume == nil {
		return false
	}
	done, err := m.trades.NotionalSince(ctx, bot.ID, util.StartOfDayUTC(m.now()))
	if err != nil {
		return false
	}
	return done >= bot.Volume.DailyTargetNotional
}

// apply persists a status change with its audit row. No-op when unchanged.
func (m *HealthMonitor) apply(ctx context.Context, bot *model.Bot, status, message string) {
	if status == bot.Health {
		return
	}

	log := logger.GetLogger().WithBot(bot.ID)
	log.Infof("Health transition: %s -> %s (%s)", bot.Health, status, message)

	transition := &model.HealthTransition{
		ID:       uuid.New().String(),
		BotID:    bot.ID,
		Previous: bot.Health,
		Current:  status,
		Reason:   message,
		At:       m.now(),
	}
	if err := m.health.RecordTransition(ctx, transition); err != nil {
		log.Errorf("Failed to record health transition: %v", err)
	}

	if err := m.bots.UpdateHealth(ctx, bot.ID, status, message); err != nil {
		log.Errorf("Failed to persist health: %v", err)
		return
	}

	if m.notifier != nil {
		m.notifier.NotifyClient(bot.ClientID, model.EventBotHealth, map[string]interface{}{
			"bot_id":  bot.ID,
			"health":  status,
			"message": message,
		})
	}
}
