package oracle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Cyberenchanter/insurance-protocol/internal/oracle"
)

func TestDeterministic_AnswerFlips(t *testing.T) {
	gw := oracle.NewDeterministic(false)

	got, err := gw.IsPayoutEvent(context.Background(), 1)
	if err != nil || got {
		t.Fatalf("IsPayoutEvent = (%v, %v), want (false, nil)", got, err)
	}

	gw.SetAnswer(true)
	got, err = gw.IsPayoutEvent(context.Background(), 1)
	if err != nil || !got {
		t.Fatalf("IsPayoutEvent after SetAnswer = (%v, %v), want (true, nil)", got, err)
	}
}

func TestProbability_RejectsOutOfRange(t *testing.T) {
	for _, bps := range []int64{-1, 10_001} {
		if _, err := oracle.NewProbability(bps, 1); err == nil {
			t.Errorf("NewProbability(%d) should fail", bps)
		}
	}
}

func TestProbability_Extremes(t *testing.T) {
	never, _ := oracle.NewProbability(0, 42)
	always, _ := oracle.NewProbability(10_000, 42)

	for i := 0; i < 100; i++ {
		if got, _ := never.IsPayoutEvent(context.Background(), 1); got {
			t.Fatal("0 bps oracle answered true")
		}
		if got, _ := always.IsPayoutEvent(context.Background(), 1); !got {
			t.Fatal("10000 bps oracle answered false")
		}
	}
}

func TestProbability_SeedReproducible(t *testing.T) {
	a, _ := oracle.NewProbability(5_000, 7)
	b, _ := oracle.NewProbability(5_000, 7)

	for i := 0; i < 50; i++ {
		va, _ := a.IsPayoutEvent(context.Background(), 1)
		vb, _ := b.IsPayoutEvent(context.Background(), 1)
		if va != vb {
			t.Fatalf("seeded oracles diverged at call %d", i)
		}
	}
}

func TestHTTPFeed_Verdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verdict" {
			t.Errorf("path = %q, want /verdict", r.URL.Path)
		}
		if got := r.URL.Query().Get("product_id"); got != "3" {
			t.Errorf("product_id = %q, want 3", got)
		}
		w.Write([]byte(`{"payout": true}`))
	}))
	defer srv.Close()

	feed := oracle.NewHTTPFeed(srv.URL, time.Second)
	got, err := feed.IsPayoutEvent(context.Background(), 3)
	if err != nil {
		t.Fatalf("IsPayoutEvent: %v", err)
	}
	if !got {
		t.Error("IsPayoutEvent = false, want true")
	}
}

func TestHTTPFeed_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	feed := oracle.NewHTTPFeed(srv.URL, time.Second)
	if _, err := feed.IsPayoutEvent(context.Background(), 1); err == nil {
		t.Error("expected error on non-200 feed response")
	}
}
