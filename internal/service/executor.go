package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/logger"
	"botfleet/backend/pkg/orchestrator"
)

// Tick outcomes.
const (
	TickTraded  = "traded"  // a trade executed and was recorded
	TickQuoted  = "quoted"  // resting quotes placed or repositioned (spread)
	TickSkipped = "skipped" // nothing to do this tick; not an error
	TickError   = "error"   // the tick failed; scheduler classifies and persists
)

// TickResult is the outcome of one bot tick.
type TickResult struct {
	Outcome string
	Reason  string
	Err     error
}

func tickSkipped(reason string) TickResult {
	return TickResult{Outcome: TickSkipped, Reason: reason}
}

func tickError(reason string, err error) TickResult {
	return TickResult{Outcome: TickError, Reason: reason, Err: err}
}

// authTickError wraps a venue authentication failure so the scheduler can
// recognize it by code and halt the bot through health.
func authTickError(err error) TickResult {
	msg := "Venue rejected the stored credentials"
	return tickError(msg, util.NewAppErrorWithDetails(401, util.ErrCodeAuthentication, msg, err.Error()))
}

// spreadState tracks a spread bot's resting quotes between ticks.
type spreadState struct {
	anchor     float64
	bidOrderID string
	askOrderID string
}

// volumeState tracks a volume bot's randomized trade window.
type volumeState struct {
	nextTradeAt time.Time
	lastSide    string
}

// Executor runs one strategy tick for one bot. It owns per-bot strategy state
// and is safe for use from a single scheduler goroutine per bot (the scheduler
// guarantees at most one in-flight tick per bot).
type Executor struct {
	sessions SessionProvider
	fetcher  *Fetcher
	bots     BotStore
	trades   TradeStore
	creds    CredentialStore
	orch     *orchestrator.Client

	mu        sync.Mutex
	spread    map[int64]*spreadState
	volume    map[int64]*volumeState
	delegated map[int64]string // bot id -> orchestrator task id

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// NewExecutor creates a trade executor.
func NewExecutor(
	sessions SessionProvider,
	fetcher *Fetcher,
	bots BotStore,
	trades TradeStore,
	creds CredentialStore,
	orch *orchestrator.Client,
) *Executor {
	return &Executor{
		sessions:  sessions,
		fetcher:   fetcher,
		bots:      bots,
		trades:    trades,
		creds:     creds,
		orch:      orch,
		spread:    make(map[int64]*spreadState),
		volume:    make(map[int64]*volumeState),
		delegated: make(map[int64]string),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       util.NowUTC,
	}
}

// Tick runs one strategy pass for the bot.
func (e *Executor) Tick(ctx context.Context, bot *model.Bot) TickResult {
	if err := ValidateBotConfig(bot); err != nil {
		// Config problems are surfaced before any venue call is attempted.
		return tickError(err.Message, err)
	}

	if bot.Delegated {
		return e.delegatedTick(ctx, bot)
	}

	cred, err := e.creds.GetByID(ctx, bot.CredentialID)
	if err != nil {
		return tickError("Credential not found for this bot",
			util.ErrConfiguration("Credential not found for this bot"))
	}

	sess, err := e.sessions.GetOrCreate(ctx, bot, cred.Version)
	if err != nil {
		if venue.Classify(err) == venue.FailAuth {
			return authTickError(err)
		}
		return tickError("Could not establish a venue session", err)
	}

	switch bot.Strategy {
	case model.StrategySpread:
		return e.spreadTick(ctx, bot, sess)
	case model.StrategyVolume:
		return e.volumeTick(ctx, bot, sess)
	default:
		return tickError("Unknown strategy "+bot.Strategy,
			util.ErrConfiguration("Unknown strategy "+bot.Strategy))
	}
}

// delegatedTick hands the strategy to the external orchestration service. The
// descriptor is submitted once per run; subsequent ticks are no-ops while the
// task is live.
func (e *Executor) delegatedTick(ctx context.Context, bot *model.Bot) TickResult {
	e.mu.Lock()
	taskID, submitted := e.delegated[bot.ID]
	e.mu.Unlock()
	if submitted {
		return tickSkipped("delegated to orchestration service (task " + taskID + ")")
	}

	desc := orchestrator.StrategyDescriptor{
		ProfileID: bot.OrchestratorProfile,
		Venue:     bot.Venue,
		Symbol:    bot.Symbol,
		Strategy:  bot.Strategy,
	}
	switch bot.Strategy {
	case model.StrategySpread:
		desc.Notional = bot.Spread.OrderNotional
	case model.StrategyVolume:
		desc.Notional = bot.Volume.DailyTargetNotional
	}

	result, err := e.orch.Submit(ctx, desc)
	if err != nil {
		return tickError("Orchestration service unreachable", err)
	}
	if !result.Accepted {
		return tickError("Orchestration service rejected the strategy: "+result.Reason,
			util.ErrConfiguration(result.Reason))
	}

	e.mu.Lock()
	e.delegated[bot.ID] = result.TaskID
	e.mu.Unlock()

	logger.GetLogger().WithBot(bot.ID).Infof("Strategy delegated: task=%s profile=%s", result.TaskID, bot.OrchestratorProfile)
	return TickResult{Outcome: TickQuoted, Reason: "strategy submitted to orchestration service"}
}

// randFloat64 and randIntn serialize access to the shared rng. Ticks for
// different bots run concurrently and rand.Rand is not safe for concurrent use.
func (e *Executor) randFloat64() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func (e *Executor) randIntn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// ClearState drops all per-bot runtime state. Called on stop and delete.
func (e *Executor) ClearState(botID int64) {
	e.mu.Lock()
	delete(e.spread, botID)
	delete(e.volume, botID)
	delete(e.delegated, botID)
	e.mu.Unlock()
	e.sessions.Teardown(botID)
}

// ValidateBotConfig checks the bot is complete enough to trade. Incomplete
// configuration fails here with a plain-language message, never downstream as
// a nil dereference.
func ValidateBotConfig(bot *model.Bot) *util.AppError {
	v, err := venue.Resolve(bot.Venue)
	if err != nil {
		return util.ErrConfiguration("Unknown venue " + bot.Venue)
	}

	if bot.Delegated {
		if bot.OrchestratorProfile == "" {
			return util.ErrConfiguration("No orchestration profile configured for this bot")
		}
	} else if bot.CredentialID == 0 {
		return util.ErrConfiguration("No credential configured for this bot")
	}

	if v.IsDEX() {
		if bot.BaseMint == "" || bot.QuoteMint == "" {
			return util.ErrConfiguration("No token mints configured for this bot")
		}
		if bot.BaseDecimals <= 0 || bot.QuoteDecimals <= 0 {
			return util.ErrConfiguration("Token decimals are not configured for this bot")
		}
	} else if bot.Symbol == "" {
		return util.ErrConfiguration("No trading symbol configured for this bot")
	}

	switch bot.Strategy {
	case model.StrategySpread:
		if bot.Spread == nil {
			return util.ErrConfiguration("Spread parameters are missing")
		}
	case model.StrategyVolume:
		if bot.Volume == nil {
			return util.ErrConfiguration("Volume parameters are missing")
		}
	default:
		return util.ErrConfiguration("Unknown strategy " + bot.Strategy)
	}

	return nil
}

// confirmStillRunning re-reads the admin status right before persisting trade
// effects. A stop recorded mid-tick suppresses the tick's effects.
func (e *Executor) confirmStillRunning(ctx context.Context, botID int64) bool {
	current, err := e.bots.GetByID(ctx, botID)
	if err != nil {
		return false
	}
	return current.IsRunning()
}
