package redis

import (
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestWithTxRetriesRetriesOnConflict(t *testing.T) {
	calls := 0
	err := withTxRetries(func() error {
		calls++
		if calls < 3 {
			return redis.TxFailedErr
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withTxRetries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithTxRetriesGivesUpAfterBudget(t *testing.T) {
	calls := 0
	err := withTxRetries(func() error {
		calls++
		return redis.TxFailedErr
	})
	if err != redis.TxFailedErr {
		t.Fatalf("err = %v, want TxFailedErr", err)
	}
	if calls != txRetries {
		t.Errorf("calls = %d, want %d", calls, txRetries)
	}
}

func TestWithTxRetriesStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	err := withTxRetries(func() error {
		calls++
		return boom
	})
	if err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-conflict errors)", calls)
	}
}

func TestWithTxRetriesStopsOnSuccess(t *testing.T) {
	calls := 0
	if err := withTxRetries(func() error { calls++; return nil }); err != nil {
		t.Fatalf("withTxRetries: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
