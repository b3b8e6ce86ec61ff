package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/pkg/cex"
)

func newScheduler(fx *executorFixture, notifier *fakeNotifier) *Scheduler {
	return NewScheduler(fx.bots, fx.executor, notifier, time.Minute)
}

func TestSchedulerTicksOnlyRunningBots(t *testing.T) {
	running := newVolumeBot(1)
	stopped := newVolumeBot(2)
	stopped.Status = model.BotStatusStopped

	fx := newExecutorFixture(running, stopped)
	s := newScheduler(fx, &fakeNotifier{})

	s.tickAll(context.Background())

	waitFor(t, func() bool { return fx.sessions.requestCount() == 1 })
	time.Sleep(20 * time.Millisecond) // catch any stray dispatch
	fx.sessions.mu.Lock()
	defer fx.sessions.mu.Unlock()
	if len(fx.sessions.requests) != 1 || fx.sessions.requests[0] != 1 {
		t.Errorf("session requests = %v, want only bot 1", fx.sessions.requests)
	}
}

func TestSchedulerSkipsInFlightBot(t *testing.T) {
	bot := newVolumeBot(1)
	fx := newExecutorFixture(bot)
	s := newScheduler(fx, &fakeNotifier{})

	if !s.claim(1) {
		t.Fatal("initial claim failed")
	}
	s.tickAll(context.Background())
	time.Sleep(50 * time.Millisecond)
	if n := fx.sessions.requestCount(); n != 0 {
		t.Errorf("ticked %d times while a tick was in flight, want 0", n)
	}
	s.release(1)

	if !s.claim(1) {
		t.Error("claim after release failed")
	}
}

func TestSchedulerClaimGuard(t *testing.T) {
	s := newScheduler(newExecutorFixture(), &fakeNotifier{})

	if !s.claim(7) {
		t.Fatal("first claim refused")
	}
	if s.claim(7) {
		t.Error("second claim granted while in flight")
	}
	s.release(7)
	if !s.claim(7) {
		t.Error("claim refused after release")
	}
}

func TestSchedulerRecordsHeartbeatOnSuccess(t *testing.T) {
	bot := newVolumeBot(1)
	fx := newExecutorFixture(bot)
	notifier := &fakeNotifier{}
	s := newScheduler(fx, notifier)

	s.tickOne(context.Background(), bot)

	if len(fx.bots.heartbeats) != 1 {
		t.Errorf("heartbeats = %v, want one for bot 1", fx.bots.heartbeats)
	}
	if events := notifier.byEvent(model.EventBotTrade); len(events) != 1 {
		t.Errorf("trade events = %d, want 1", len(events))
	}
}

func TestSchedulerRestingSpreadTickHeartbeats(t *testing.T) {
	bot := newSpreadBot(1)
	fx := newExecutorFixture(bot)
	s := newScheduler(fx, &fakeNotifier{})

	// First tick places both quotes; the second finds them resting inside the
	// drift band and skips. Both are serviced passes and both heartbeat, so a
	// quietly resting spread bot never looks abandoned to the health monitor.
	s.tickOne(context.Background(), bot)
	s.tickOne(context.Background(), bot)

	if len(fx.bots.heartbeats) != 2 {
		t.Errorf("heartbeats = %v, want two for bot 1", fx.bots.heartbeats)
	}
	if orders := fx.conn.placedOrders(); len(orders) != 2 {
		t.Errorf("orders = %d, want 2 (quoted once, never repositioned)", len(orders))
	}
}

func TestSchedulerPanicIsolation(t *testing.T) {
	bot := newVolumeBot(1)
	fx := newExecutorFixture(bot)
	fx.conn.midPanic = true
	notifier := &fakeNotifier{}
	s := newScheduler(fx, notifier)

	// Must not escape the tick.
	s.tickOne(context.Background(), bot)

	call, ok := fx.bots.lastHealthCall()
	if !ok || call.health != model.HealthError || !strings.Contains(call.message, "Strategy crashed") {
		t.Fatalf("health call = %+v, want crash recorded as error", call)
	}
	if events := notifier.byEvent(model.EventBotHealth); len(events) != 1 {
		t.Errorf("health events = %d, want 1", len(events))
	}

	// The loop stays alive for other bots.
	fx.conn.midPanic = false
	healthy := newVolumeBot(2)
	fx.bots.Create(context.Background(), healthy)
	s.tickOne(context.Background(), healthy)
	if fx.trades.count() != 1 {
		t.Error("scheduler did not recover for subsequent bots")
	}
}

func TestSchedulerAuthFailureRecordsHealth(t *testing.T) {
	bot := newVolumeBot(1)
	fx := newExecutorFixture(bot)
	fx.sessions.err = &cex.APIError{HTTPStatus: 401, Message: "invalid key"}
	notifier := &fakeNotifier{}
	s := newScheduler(fx, notifier)

	s.tickOne(context.Background(), bot)

	call, ok := fx.bots.lastHealthCall()
	if !ok || call.health != model.HealthError {
		t.Fatalf("health call = %+v, want error recorded", call)
	}
	if events := notifier.byEvent(model.EventBotHealth); len(events) != 1 {
		t.Errorf("health events = %d, want 1", len(events))
	}
}

func TestSchedulerNetworkFailureLeavesHealthAlone(t *testing.T) {
	// Transient venue failures are retried on the next tick, not escalated.
	bot := newVolumeBot(1)
	fx := newExecutorFixture(bot)
	fx.conn.orderErr = context.DeadlineExceeded
	s := newScheduler(fx, &fakeNotifier{})

	s.tickOne(context.Background(), bot)

	if n := fx.bots.healthCallCount(); n != 0 {
		t.Errorf("health mutated %d times on a network failure, want 0", n)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	fx := newExecutorFixture()
	s := NewScheduler(fx.bots, fx.executor, &fakeNotifier{}, 10*time.Millisecond)

	go s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
