package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/logger"
)

// Scheduler drives all running bots on one perpetual tick loop. Each bot's
// tick runs in its own goroutine with panic isolation, and a bot never has
// more than one tick in flight.
type Scheduler struct {
	bots     BotStore
	executor *Executor
	notifier Notifier
	interval time.Duration

	mu       sync.Mutex
	inFlight map[int64]bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates the bot scheduler.
func NewScheduler(bots BotStore, executor *Executor, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		bots:     bots,
		executor: executor,
		notifier: notifier,
		interval: interval,
		inFlight: make(map[int64]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or the context is cancelled.
// Blocks; callers run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.GetLogger()
	log.Infof("Scheduler started: tick interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopping: context cancelled")
			return
		case <-s.stopCh:
			log.Info("Scheduler stopping")
			return
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// tickAll dispatches one tick for every running bot. Stopped bots are never
// ticked: the work set is built from the running-status index only.
func (s *Scheduler) tickAll(ctx context.Context) {
	bots, err := s.bots.ListByStatus(ctx, model.BotStatusRunning)
	if err != nil {
		logger.GetLogger().Errorf("Scheduler failed to list running bots: %v", err)
		return
	}

	for _, bot := range bots {
		if !s.claim(bot.ID) {
			logger.GetLogger().WithBot(bot.ID).Debug("Tick still in flight, skipping")
			continue
		}

		go func(bot *model.Bot) {
			defer s.release(bot.ID)
			s.tickOne(ctx, bot)
		}(bot)
	}
}

// tickOne runs a single bot tick with panic isolation and persists its
// effects. A crash in one bot's strategy never takes down the loop or the
// other bots.
func (s *Scheduler) tickOne(ctx context.Context, bot *model.Bot) {
	log := logger.GetLogger().WithBot(bot.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Tick panicked: %v", fmt.Errorf("%v", r))
			msg := fmt.Sprintf("Strategy crashed: %v", r)
			if err := s.bots.UpdateHealth(ctx, bot.ID, model.HealthError, msg); err != nil {
				log.Errorf("Failed to record crash health: %v", err)
			}
			s.notify(bot, model.EventBotHealth, map[string]interface{}{"health": model.HealthError, "message": msg})
		}
	}()

	result := s.executor.Tick(ctx, bot)

	switch result.Outcome {
	case TickTraded, TickQuoted, TickSkipped:
		// Every non-error tick is a serviced pass. Skips count too: a spread
		// bot whose quotes rest inside the drift threshold, or a volume bot
		// between trade windows, still heartbeats so the health monitor does
		// not mistake quiet for staleness.
		if err := s.bots.RecordHeartbeat(ctx, bot.ID); err != nil {
			log.Warnf("Failed to record heartbeat: %v", err)
		}
		log.Infof("Tick %s: %s", result.Outcome, result.Reason)
		if result.Outcome == TickTraded {
			s.notify(bot, model.EventBotTrade, map[string]interface{}{"detail": result.Reason})
		}

	case TickError:
		log.Errorf("Tick failed: %s: %v", result.Reason, result.Err)
		// Configuration and authentication failures halt the bot's trading
		// until corrected, surfaced through health. Network failures are left
		// for the next tick; no inner retry loop.
		if appErr := util.GetAppError(result.Err); appErr != nil &&
			(appErr.Code == util.ErrCodeConfiguration || appErr.Code == util.ErrCodeAuthentication) {
			s.recordHealthError(ctx, bot, result.Reason)
		}
	}
}

func (s *Scheduler) recordHealthError(ctx context.Context, bot *model.Bot, msg string) {
	if err := s.bots.UpdateHealth(ctx, bot.ID, model.HealthError, msg); err != nil {
		logger.GetLogger().WithBot(bot.ID).Errorf("Failed to record health error: %v", err)
		return
	}
	s.notify(bot, model.EventBotHealth, map[string]interface{}{"health": model.HealthError, "message": msg})
}

func (s *Scheduler) notify(bot *model.Bot, event string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	payload["bot_id"] = bot.ID
	s.notifier.NotifyClient(bot.ClientID, event, payload)
}

// claim marks a bot's tick in flight. Returns false when one is already
// running; the second tick is skipped, never queued.
func (s *Scheduler) claim(botID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[botID] {
		return false
	}
	s.inFlight[botID] = true
	return true
}

func (s *Scheduler) release(botID int64) {
	s.mu.Lock()
	delete(s.inFlight, botID)
	s.mu.Unlock()
}
