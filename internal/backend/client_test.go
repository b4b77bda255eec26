// README: Backend client wire-format tests against a stub HTTP server.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kiosk/internal/types"
)

func stubBackend(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
	}

	mux.HandleFunc("GET /api/stations/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "Central"},
			{"id": 2, "name": "Riverside"},
		})
	})
	mux.HandleFunc("GET /api/pricing/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`[{"id":1,"station_a_id":1,"station_b_id":2,"price":3.25}]`))
	})
	mux.HandleFunc("GET /api/pricing/minimum", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"minimum_fare":2.25}`))
	})
	mux.HandleFunc("POST /api/trips/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.Header.Get("X-API-Key") != "backend-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			CardUUID        string `json:"card_uuid"`
			SourceStationID int    `json:"source_station_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CardUUID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":42,"card_id":7,"source_station_id":1,"status":"active","cost":0.00}`))
	})
	mux.HandleFunc("POST /api/trips/42/complete", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body struct {
			DestinationStationID int         `json:"destination_station_id"`
			FinalCost            types.Money `json:"final_cost"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.FinalCost != types.MustParseMoney("3.25") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":42,"status":"completed"}`))
	})
	mux.HandleFunc("GET /api/cards/uuid/abc", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"id":7,"uuid":"abc","balance":25.00}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestClientReadsConfiguration(t *testing.T) {
	srv, _ := stubBackend(t)
	c := NewClient(srv.URL, "backend-key", time.Second)
	ctx := context.Background()

	stations, err := c.ListStations(ctx)
	if err != nil {
		t.Fatalf("list stations: %v", err)
	}
	if len(stations) != 2 || stations[0].Name != "Central" {
		t.Fatalf("stations = %+v", stations)
	}

	entries, err := c.FareMatrix(ctx)
	if err != nil {
		t.Fatalf("fare matrix: %v", err)
	}
	if len(entries) != 1 || entries[0].Fare != types.MustParseMoney("3.25") {
		t.Fatalf("entries = %+v, want exact 3.25 fare", entries)
	}

	minimum, err := c.MinimumFare(ctx)
	if err != nil {
		t.Fatalf("minimum fare: %v", err)
	}
	if minimum != types.MustParseMoney("2.25") {
		t.Fatalf("minimum = %s, want 2.25", minimum)
	}
}

func TestClientTripLifecycle(t *testing.T) {
	srv, _ := stubBackend(t)
	c := NewClient(srv.URL, "backend-key", time.Second)
	ctx := context.Background()

	trip, err := c.CreateTrip(ctx, "abc", 1)
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if trip.ID != 42 || trip.CardID != 7 {
		t.Fatalf("trip = %+v", trip)
	}

	if err := c.CompleteTrip(ctx, trip.ID, 2, types.MustParseMoney("3.25")); err != nil {
		t.Fatalf("complete trip: %v", err)
	}

	card, err := c.GetCardByUUID(ctx, "abc")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.ID != 7 || card.Balance != types.MustParseMoney("25.00") {
		t.Fatalf("card = %+v", card)
	}
}

func TestClientSendsAPIKey(t *testing.T) {
	srv, _ := stubBackend(t)
	c := NewClient(srv.URL, "wrong-key", time.Second)

	if _, err := c.CreateTrip(context.Background(), "abc", 1); err == nil {
		t.Fatal("expected auth failure with wrong key")
	}
}

func TestClientNotFound(t *testing.T) {
	srv, _ := stubBackend(t)
	c := NewClient(srv.URL, "backend-key", time.Second)

	_, err := c.GetCardByUUID(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetActiveTripAbsentIsNotAnError(t *testing.T) {
	srv, _ := stubBackend(t)
	c := NewClient(srv.URL, "backend-key", time.Second)

	// The backend answers 404 when the card has no active trip; the client
	// reports that as (nil, nil) even though the 404 arrives wrapped.
	trip, err := c.GetActiveTrip(context.Background(), 7)
	if err != nil {
		t.Fatalf("get active trip: %v", err)
	}
	if trip != nil {
		t.Fatalf("trip = %+v, want nil for a card with no active trip", trip)
	}
}

func TestClientTimeoutIsBounded(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)

	c := NewClient(slow.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := c.ListStations(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Fatal("call was not bounded by the client timeout")
	}
}
