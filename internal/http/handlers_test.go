// README: HTTP surface tests over real components and an unreachable backend.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"kiosk/internal/backend"
	"kiosk/internal/kv"
	"kiosk/internal/modules/card"
	"kiosk/internal/modules/faillog"
	"kiosk/internal/modules/pricing"
	"kiosk/internal/modules/scan"
	"kiosk/internal/modules/trip"
	"kiosk/internal/types"
)

// downBackend simulates an unreachable backend for both configuration and
// sync calls, which exercises the terminal's offline posture end to end.
type downBackend struct{}

var errDown = errors.New("connection refused")

func (downBackend) ListStations(context.Context) ([]pricing.Station, error) { return nil, errDown }
func (downBackend) FareMatrix(context.Context) ([]pricing.FareEntry, error) { return nil, errDown }
func (downBackend) MinimumFare(context.Context) (types.Money, error)        { return 0, errDown }

func (downBackend) CreateTrip(context.Context, string, int) (backend.Trip, error) {
	return backend.Trip{}, errDown
}
func (downBackend) CompleteTrip(context.Context, int64, int, types.Money) error { return errDown }
func (downBackend) CreateCard(context.Context, types.Money, string) (backend.Card, error) {
	return backend.Card{}, errDown
}
func (downBackend) AddFunds(context.Context, int64, types.Money) (backend.Card, error) {
	return backend.Card{}, errDown
}
func (downBackend) GetCardByUUID(context.Context, string) (backend.Card, error) {
	return backend.Card{}, errDown
}

type testServer struct {
	router *gin.Engine
	engine *trip.Service
	sink   *faillog.Sink
}

func newTestServer(t *testing.T, apiKey string) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := pricing.NewProvider(downBackend{}, "")
	if err := provider.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize pricing: %v", err)
	}
	ledger := card.NewStore(kv.NewMemoryStore(), types.MustParseMoney("25.00"))
	sink := faillog.NewSink(kv.NewMemoryStore(), "kiosk-test", 50, "")
	engine := trip.NewService(ledger, provider, downBackend{}, sink, time.Second)
	dispatcher := scan.NewDispatcher(engine, 1)

	srv := NewServer(ServerDeps{
		Dispatcher: dispatcher,
		Engine:     engine,
		Sink:       sink,
		Pricing:    provider,
		APIKey:     apiKey,
	})
	return testServer{router: srv.Routes(), engine: engine, sink: sink}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScanEntryOverHTTP(t *testing.T) {
	ts := newTestServer(t, "")

	w := doJSON(t, ts.router, http.MethodPost, "/api/scan", `{"screen":"entry","card_uuid":"c1","station_id":1}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out scan.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Accepted || out.Display != scan.DisplaySuccess {
		t.Fatalf("outcome = %+v", out)
	}
	ts.engine.Wait()

	// The create-trip sync failed against the down backend and must be in
	// the backlog, while the passenger saw success.
	ops, err := ts.sink.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(ops) != 1 || ops[0].Type != faillog.OpCreateTrip {
		t.Fatalf("ops = %+v, want one CREATE_TRIP", ops)
	}
}

func TestScanRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, "")

	if w := doJSON(t, ts.router, http.MethodPost, "/api/scan", `{not json`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", w.Code)
	}
	if w := doJSON(t, ts.router, http.MethodPost, "/api/scan", `{"card_uuid":"c1"}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing screen status = %d", w.Code)
	}
}

func TestCardStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	w := doJSON(t, ts.router, http.MethodGet, "/api/cards/c9", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		UUID          string      `json:"uuid"`
		Balance       types.Money `json:"balance"`
		HasActiveTrip bool        `json:"has_active_trip"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UUID != "c9" || resp.Balance != types.MustParseMoney("25.00") || resp.HasActiveTrip {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestConfigEndpointReportsOfflineBoot(t *testing.T) {
	ts := newTestServer(t, "")

	w := doJSON(t, ts.router, http.MethodGet, "/api/config", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		StartedOffline bool              `json:"started_offline"`
		Stations       []pricing.Station `json:"stations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.StartedOffline {
		t.Fatal("expected started_offline with a down backend")
	}
	if len(resp.Stations) == 0 {
		t.Fatal("stations must come from the snapshot, never empty")
	}
}

func TestFailedOperationsExportAndClear(t *testing.T) {
	ts := newTestServer(t, "")

	// Produce one failed sync.
	doJSON(t, ts.router, http.MethodPost, "/api/scan", `{"screen":"entry","card_uuid":"c1","station_id":1}`, "")
	ts.engine.Wait()

	w := doJSON(t, ts.router, http.MethodGet, "/api/failed-operations", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	var resp struct {
		Count      int                       `json:"count"`
		Operations []faillog.FailedOperation `json:"operations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}

	if w := doJSON(t, ts.router, http.MethodDelete, "/api/failed-operations", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", w.Code)
	}
	w = doJSON(t, ts.router, http.MethodGet, "/api/failed-operations", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("count after clear = %d, want 0", resp.Count)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	ts := newTestServer(t, "secret")

	if w := doJSON(t, ts.router, http.MethodGet, "/api/cards/c1", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d, want 401", w.Code)
	}
	if w := doJSON(t, ts.router, http.MethodGet, "/api/cards/c1", "", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d, want 401", w.Code)
	}
	if w := doJSON(t, ts.router, http.MethodGet, "/api/cards/c1", "", "secret"); w.Code != http.StatusOK {
		t.Fatalf("valid key status = %d, want 200", w.Code)
	}
	// Health stays open for unauthenticated liveness checks.
	if w := doJSON(t, ts.router, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
}
