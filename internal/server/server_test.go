package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cyberenchanter/insurance-protocol/internal/core"
	"github.com/Cyberenchanter/insurance-protocol/internal/event"
	"github.com/Cyberenchanter/insurance-protocol/internal/fpmath"
	"github.com/Cyberenchanter/insurance-protocol/internal/oracle"
	"github.com/Cyberenchanter/insurance-protocol/internal/server"
	"github.com/Cyberenchanter/insurance-protocol/internal/treasury"
)

var (
	provider = uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	customer = uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")
)

func newTestServer(t *testing.T) (*httptest.Server, *oracle.Deterministic) {
	t.Helper()

	gw := oracle.NewDeterministic(false)
	log := event.NewLog()

	engine, err := core.NewEngine(core.Config{
		MaxUtilizationPct: 100,
		Names:             []string{"flight-delay"},
		Premiums:          []int64{fpmath.Unit / 10},
		Liabilities:       []int64{fpmath.Unit},
		Durations:         []time.Duration{5 * time.Minute},
		Oracles:           []oracle.Gateway{gw},
		Treasury:          treasury.NewVault(),
		Sink:              log,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	srv := server.New(engine, log, nil, nil, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, gw
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// List endpoints return arrays; callers that need those decode
		// separately.
		return nil
	}
	return body
}

func stake(t *testing.T, ts *httptest.Server, amount int64) {
	t.Helper()
	resp, _ := post(t, ts, "/v1/pool/stake",
		fmt.Sprintf(`{"provider": %q, "amount": %d}`, provider, amount))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stake status = %d", resp.StatusCode)
	}
}

func TestStakeEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := post(t, ts, "/v1/pool/stake",
		fmt.Sprintf(`{"provider": %q, "amount": %d}`, provider, 10*fpmath.Unit))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := int64(body["shares_minted"].(float64)); got != 10*fpmath.Unit {
		t.Errorf("shares_minted = %d, want %d", got, 10*fpmath.Unit)
	}

	_, pool := get(t, ts, "/v1/pool")
	if got := int64(pool["total_liquidity"].(float64)); got != 10*fpmath.Unit {
		t.Errorf("total_liquidity = %d, want %d", got, 10*fpmath.Unit)
	}
}

func TestStakeEndpoint_ZeroAmount(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := post(t, ts, "/v1/pool/stake",
		fmt.Sprintf(`{"provider": %q, "amount": 0}`, provider))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "zero_amount" {
		t.Errorf("code = %v, want zero_amount", body["code"])
	}
}

func TestStakeEndpoint_BadProvider(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := post(t, ts, "/v1/pool/stake", `{"provider": "not-a-uuid", "amount": 1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPolicyLifecycleOverHTTP(t *testing.T) {
	ts, gw := newTestServer(t)
	stake(t, ts, 10*fpmath.Unit)

	// Purchase.
	resp, body := post(t, ts, "/v1/policies",
		fmt.Sprintf(`{"customer": %q, "product_id": 1, "paid_amount": %d}`, customer, fpmath.Unit/10))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase status = %d, want 201", resp.StatusCode)
	}
	policyID := int64(body["policy_id"].(float64))
	if policyID != 1 {
		t.Errorf("policy_id = %d, want 1", policyID)
	}

	// Claim with a false verdict settles nothing.
	resp, body = post(t, ts, fmt.Sprintf("/v1/policies/%d/claim", policyID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", resp.StatusCode)
	}
	if body["settled"] != false {
		t.Errorf("settled = %v, want false", body["settled"])
	}

	// Claim with a true verdict pays out.
	gw.SetAnswer(true)
	resp, body = post(t, ts, fmt.Sprintf("/v1/policies/%d/claim", policyID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", resp.StatusCode)
	}
	if body["settled"] != true {
		t.Errorf("settled = %v, want true", body["settled"])
	}

	// The policy record reflects the settlement.
	resp, body = get(t, ts, fmt.Sprintf("/v1/policies/%d", policyID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get policy status = %d", resp.StatusCode)
	}
	if body["state"] != "Claimed" {
		t.Errorf("state = %v, want Claimed", body["state"])
	}

	// A second claim conflicts.
	resp, body = post(t, ts, fmt.Sprintf("/v1/policies/%d/claim", policyID), "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second claim status = %d, want 409", resp.StatusCode)
	}
	if body["code"] != "already_claimed" {
		t.Errorf("code = %v, want already_claimed", body["code"])
	}
}

func TestPolicyEndpoints_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts, "/v1/policies/42")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "policy_not_found" {
		t.Errorf("code = %v, want policy_not_found", body["code"])
	}

	resp, body = get(t, ts, "/v1/products/9")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "invalid_product" {
		t.Errorf("code = %v, want invalid_product", body["code"])
	}
}

func TestPurchaseEndpoint_RiskLimit(t *testing.T) {
	ts, _ := newTestServer(t)
	stake(t, ts, fpmath.Unit/2)

	resp, body := post(t, ts, "/v1/policies",
		fmt.Sprintf(`{"customer": %q, "product_id": 1, "paid_amount": %d}`, customer, fpmath.Unit/10))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if body["code"] != "risk_limit_exceeded" {
		t.Errorf("code = %v, want risk_limit_exceeded", body["code"])
	}
}

func TestProductListEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/products")
	if err != nil {
		t.Fatalf("GET /v1/products: %v", err)
	}
	defer resp.Body.Close()

	var products []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	if products[0]["name"] != "flight-delay" {
		t.Errorf("name = %v, want flight-delay", products[0]["name"])
	}
}

func TestProviderSharesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	stake(t, ts, 10*fpmath.Unit)

	resp, body := get(t, ts, fmt.Sprintf("/v1/providers/%s/shares", provider))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := int64(body["shares"].(float64)); got != 10*fpmath.Unit {
		t.Errorf("shares = %d, want %d", got, 10*fpmath.Unit)
	}
	if got := int64(body["redeemable_value"].(float64)); got != 10*fpmath.Unit {
		t.Errorf("redeemable_value = %d, want %d", got, 10*fpmath.Unit)
	}
}

func TestEventsEndpoint_SinceFilter(t *testing.T) {
	ts, _ := newTestServer(t)
	stake(t, ts, 10*fpmath.Unit)
	post(t, ts, "/v1/policies",
		fmt.Sprintf(`{"customer": %q, "product_id": 1, "paid_amount": %d}`, customer, fpmath.Unit/10))

	resp, err := http.Get(ts.URL + "/v1/events?since=1")
	if err != nil {
		t.Fatalf("GET /v1/events: %v", err)
	}
	defer resp.Body.Close()

	var events []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0]["event_type"] != "PolicyPurchased" {
		t.Errorf("event_type = %v, want PolicyPurchased", events[0]["event_type"])
	}
}
