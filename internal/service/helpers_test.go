package service

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/repository"
	"botfleet/backend/internal/venue"
)

// In-memory fakes for the store contracts, shared across the service tests.

type healthCall struct {
	botID   int64
	health  string
	message string
}

type fakeBotStore struct {
	mu          sync.Mutex
	bots        map[int64]*model.Bot
	healthCalls []healthCall
	statusCalls []string
	heartbeats  []int64
	tradeTimes  []int64
}

func newFakeBotStore(bots ...*model.Bot) *fakeBotStore {
	s := &fakeBotStore{bots: make(map[int64]*model.Bot)}
	for _, b := range bots {
		s.bots[b.ID] = b
	}
	return s
}

func (s *fakeBotStore) GetByID(_ context.Context, botID int64) (*model.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bots[botID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (s *fakeBotStore) ListByClient(_ context.Context, clientID string) ([]*model.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Bot
	for _, b := range s.bots {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBotStore) ListByStatus(_ context.Context, status string) ([]*model.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Bot
	for _, b := range s.bots {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBotStore) Create(_ context.Context, bot *model.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[bot.ID] = bot
	return nil
}

func (s *fakeBotStore) Update(_ context.Context, bot *model.Bot, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[bot.ID] = bot
	return nil
}

func (s *fakeBotStore) Delete(_ context.Context, botID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bots, botID)
	return nil
}

func (s *fakeBotStore) UpdateStatus(_ context.Context, botID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls = append(s.statusCalls, status)
	if b, ok := s.bots[botID]; ok {
		b.Status = status
	}
	return nil
}

func (s *fakeBotStore) UpdateHealth(_ context.Context, botID int64, health, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthCalls = append(s.healthCalls, healthCall{botID: botID, health: health, message: message})
	if b, ok := s.bots[botID]; ok {
		b.Health = health
		b.HealthMessage = message
	}
	return nil
}

func (s *fakeBotStore) RecordHeartbeat(_ context.Context, botID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, botID)
	if b, ok := s.bots[botID]; ok {
		now := time.Now().UTC()
		b.LastHeartbeat = &now
	}
	return nil
}

func (s *fakeBotStore) RecordTradeTime(_ context.Context, botID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeTimes = append(s.tradeTimes, botID)
	if b, ok := s.bots[botID]; ok {
		now := time.Now().UTC()
		b.LastTradeAt = &now
	}
	return nil
}

func (s *fakeBotStore) healthCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.healthCalls)
}

func (s *fakeBotStore) lastHealthCall() (healthCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.healthCalls) == 0 {
		return healthCall{}, false
	}
	return s.healthCalls[len(s.healthCalls)-1], true
}

type fakeTradeStore struct {
	mu          sync.Mutex
	trades      []*model.TradeRecord
	notionalErr error
}

func (s *fakeTradeStore) Record(_ context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *fakeTradeStore) ListByBot(_ context.Context, botID int64, limit int64) ([]*model.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.TradeRecord
	for i := len(s.trades) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if s.trades[i].BotID == botID {
			out = append(out, s.trades[i])
		}
	}
	return out, nil
}

func (s *fakeTradeStore) ListByBotSince(_ context.Context, botID int64, since time.Time) ([]*model.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.TradeRecord
	for _, t := range s.trades {
		if t.BotID == botID && !t.ExecutedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTradeStore) NotionalSince(_ context.Context, botID int64, since time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notionalErr != nil {
		return 0, s.notionalErr
	}
	var sum float64
	for _, t := range s.trades {
		if t.BotID == botID && !t.ExecutedAt.Before(since) {
			sum += t.Notional
		}
	}
	return sum, nil
}

func (s *fakeTradeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

type fakeHealthStore struct {
	mu          sync.Mutex
	transitions []*model.HealthTransition
}

func (s *fakeHealthStore) RecordTransition(_ context.Context, t *model.HealthTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t)
	return nil
}

func (s *fakeHealthStore) ListByBot(_ context.Context, botID int64, limit int64) ([]*model.HealthTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HealthTransition
	for i := len(s.transitions) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if s.transitions[i].BotID == botID {
			out = append(out, s.transitions[i])
		}
	}
	return out, nil
}

type fakeCredStore struct {
	creds map[int64]*model.Credential
	err   error
}

func (s *fakeCredStore) GetByID(_ context.Context, credentialID int64) (*model.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.creds[credentialID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

type notified struct {
	clientID string
	event    string
	payload  interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *fakeNotifier) NotifyClient(clientID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{clientID: clientID, event: event, payload: payload})
}

func (n *fakeNotifier) byEvent(event string) []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notified
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type placedOrder struct {
	side  string
	qty   float64
	price float64
}

// fakeConnector is a scriptable venue connector.
type fakeConnector struct {
	mu sync.Mutex

	balance    venue.Balance
	balanceErr error
	mid        float64
	midErr     error
	midPanic   bool

	orders   []placedOrder
	orderErr error
	orderSeq int

	cancelled []string
	cancelErr error

	activity    interface{}
	activityErr error
}

func (c *fakeConnector) GetBalance(_ context.Context, _ venue.Pair) (venue.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceErr != nil {
		return venue.Balance{}, c.balanceErr
	}
	return c.balance, nil
}

func (c *fakeConnector) GetMidPrice(_ context.Context, _ venue.Pair) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.midPanic {
		panic("price feed corrupted")
	}
	if c.midErr != nil {
		return 0, c.midErr
	}
	return c.mid, nil
}

func (c *fakeConnector) PlaceOrder(_ context.Context, _ venue.Pair, side string, qty, price float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orderErr != nil {
		return "", c.orderErr
	}
	c.orderSeq++
	c.orders = append(c.orders, placedOrder{side: side, qty: qty, price: price})
	return "order-" + strconv.Itoa(c.orderSeq), nil
}

func (c *fakeConnector) CancelOrder(_ context.Context, _ venue.Pair, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelErr != nil {
		return c.cancelErr
	}
	c.cancelled = append(c.cancelled, orderID)
	return nil
}

func (c *fakeConnector) RecentActivity(_ context.Context, _ int) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity, c.activityErr
}

func (c *fakeConnector) placedOrders() []placedOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]placedOrder(nil), c.orders...)
}

// fakeSessions hands out sessions wrapping a fakeConnector.
type fakeSessions struct {
	mu        sync.Mutex
	conn      *fakeConnector
	err       error
	requests  []int64
	teardowns []int64
}

func (f *fakeSessions) GetOrCreate(_ context.Context, bot *model.Bot, currentVersion int) (*venue.Session, error) {
	f.mu.Lock()
	f.requests = append(f.requests, bot.ID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pair := venue.Pair{
		Symbol:        bot.Symbol,
		BaseMint:      bot.BaseMint,
		QuoteMint:     bot.QuoteMint,
		BaseDecimals:  bot.BaseDecimals,
		QuoteDecimals: bot.QuoteDecimals,
	}
	return venue.NewSessionWithConnector(bot.ID, venue.Venue(bot.Venue), pair, currentVersion, f.conn), nil
}

func (f *fakeSessions) Teardown(botID int64) {
	f.mu.Lock()
	f.teardowns = append(f.teardowns, botID)
	f.mu.Unlock()
}

func (f *fakeSessions) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// stubSource makes the executor's randomness deterministic. Int63 always
// returning 1<<62 yields Float64() == 0.5 and Intn(2) == 0.
type stubSource struct{}

func (stubSource) Int63() int64 { return 1 << 62 }
func (stubSource) Seed(int64)   {}

func newStubRand() *rand.Rand { return rand.New(stubSource{}) }

func newVolumeBot(id int64) *model.Bot {
	return &model.Bot{
		ID:           id,
		ClientID:     "client-1",
		Name:         "volume bot",
		Venue:        "mexc",
		Symbol:       "TESTUSDT",
		Strategy:     model.StrategyVolume,
		CredentialID: 1,
		Status:       model.BotStatusRunning,
		Health:       model.HealthUnknown,
		Volume: &model.VolumeParams{
			DailyTargetNotional: 1000,
			MinTradeNotional:    10,
			MaxTradeNotional:    30,
			MinIntervalSec:      60,
			MaxIntervalSec:      60,
		},
	}
}

func newSpreadBot(id int64) *model.Bot {
	return &model.Bot{
		ID:           id,
		ClientID:     "client-1",
		Name:         "spread bot",
		Venue:        "mexc",
		Symbol:       "TESTUSDT",
		Strategy:     model.StrategySpread,
		CredentialID: 1,
		Status:       model.BotStatusRunning,
		Health:       model.HealthUnknown,
		Spread: &model.SpreadParams{
			BidSpreadPercent:           1,
			AskSpreadPercent:           1,
			OrderNotional:              500,
			RepositionThresholdPercent: 0.5,
		},
	}
}

type executorFixture struct {
	executor *Executor
	bots     *fakeBotStore
	trades   *fakeTradeStore
	creds    *fakeCredStore
	sessions *fakeSessions
	conn     *fakeConnector
	now      time.Time
}

func newExecutorFixture(bots ...*model.Bot) *executorFixture {
	fx := &executorFixture{
		bots:   newFakeBotStore(bots...),
		trades: &fakeTradeStore{},
		creds: &fakeCredStore{creds: map[int64]*model.Credential{
			1: {ID: 1, ClientID: "client-1", Venue: "mexc", Version: 1},
		}},
		conn: &fakeConnector{
			balance: venue.Balance{BaseAvailable: 100, QuoteAvailable: 10000},
			mid:     100,
		},
		now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	fx.sessions = &fakeSessions{conn: fx.conn}

	e := NewExecutor(fx.sessions, NewFetcher(), fx.bots, fx.trades, fx.creds, nil)
	e.rng = newStubRand()
	e.now = func() time.Time { return fx.now }
	fx.executor = e
	return fx
}
