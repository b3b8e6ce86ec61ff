package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/strategies" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var desc StrategyDescriptor
		if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
			t.Errorf("bad descriptor: %v", err)
		}
		if desc.ProfileID != "profile-1" || desc.Strategy != "volume" {
			t.Errorf("descriptor = %+v", desc)
		}
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true, TaskID: "task-42"})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "test-token").Submit(context.Background(), StrategyDescriptor{
		ProfileID: "profile-1",
		Venue:     "mexc",
		Symbol:    "TESTUSDT",
		Strategy:  "volume",
		Notional:  1000,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Accepted || result.TaskID != "task-42" {
		t.Errorf("result = %+v", result)
	}
}

func TestSubmitRejected(t *testing.T) {
	// A well-formed rejection is not a transport error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(SubmitResult{Accepted: false, Reason: "profile suspended"})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "t").Submit(context.Background(), StrategyDescriptor{ProfileID: "p"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Accepted || result.Reason != "profile suspended" {
		t.Errorf("result = %+v", result)
	}
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "t").Submit(context.Background(), StrategyDescriptor{ProfileID: "p"}); err == nil {
		t.Fatal("expected error for 5xx")
	}
}

func TestSubmitRequiresProfile(t *testing.T) {
	if _, err := NewClient("http://unused", "t").Submit(context.Background(), StrategyDescriptor{}); err == nil {
		t.Fatal("expected error for missing profile id")
	}
}
