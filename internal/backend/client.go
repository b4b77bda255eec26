// README: HTTP client for the backend of record (stations, pricing, cards, trips).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kiosk/internal/modules/pricing"
	"kiosk/internal/types"
)

// ErrNotFound is wrapped into errors returned for 404 responses so callers
// can distinguish "the backend says no such record" from "the backend is
// unreachable". Match it with errors.Is.
var ErrNotFound = errors.New("backend: not found")

type Card struct {
	ID      int64       `json:"id"`
	UUID    string      `json:"uuid"`
	Balance types.Money `json:"balance"`
}

type Trip struct {
	ID                   int64  `json:"id"`
	CardID               int64  `json:"card_id"`
	SourceStationID      int    `json:"source_station_id"`
	DestinationStationID *int   `json:"destination_station_id"`
	Status               string `json:"status"`
}

// Client talks to the backend over HTTP. Every call is bounded by the
// configured timeout so a hung network can never stall the terminal's
// fire-and-forget sync path.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListStations(ctx context.Context) ([]pricing.Station, error) {
	var out []pricing.Station
	if err := c.do(ctx, http.MethodGet, "/api/stations/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FareMatrix(ctx context.Context) ([]pricing.FareEntry, error) {
	var out []pricing.FareEntry
	if err := c.do(ctx, http.MethodGet, "/api/pricing/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MinimumFare(ctx context.Context) (types.Money, error) {
	var out struct {
		MinimumFare types.Money `json:"minimum_fare"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pricing/minimum", nil, &out); err != nil {
		return 0, err
	}
	return out.MinimumFare, nil
}

func (c *Client) CreateTrip(ctx context.Context, cardUUID string, sourceStationID int) (Trip, error) {
	body := map[string]any{
		"card_uuid":         cardUUID,
		"source_station_id": sourceStationID,
	}
	var out Trip
	if err := c.do(ctx, http.MethodPost, "/api/trips/", body, &out); err != nil {
		return Trip{}, err
	}
	return out, nil
}

func (c *Client) CompleteTrip(ctx context.Context, tripID int64, destinationStationID int, fare types.Money) error {
	body := map[string]any{
		"destination_station_id": destinationStationID,
		"final_cost":             fare,
	}
	path := fmt.Sprintf("/api/trips/%d/complete", tripID)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) CreateCard(ctx context.Context, initialBalance types.Money, cardUUID string) (Card, error) {
	body := map[string]any{
		"initial_balance": initialBalance,
	}
	if cardUUID != "" {
		body["uuid"] = cardUUID
	}
	var out Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/", body, &out); err != nil {
		return Card{}, err
	}
	return out, nil
}

func (c *Client) AddFunds(ctx context.Context, cardID int64, amount types.Money) (Card, error) {
	body := map[string]any{"amount": amount}
	path := fmt.Sprintf("/api/cards/%d/add-funds", cardID)
	var out Card
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return Card{}, err
	}
	return out, nil
}

func (c *Client) GetCardByUUID(ctx context.Context, cardUUID string) (Card, error) {
	var out Card
	if err := c.do(ctx, http.MethodGet, "/api/cards/uuid/"+cardUUID, nil, &out); err != nil {
		return Card{}, err
	}
	return out, nil
}

// GetActiveTrip returns the card's active trip, or (nil, nil) when there is none.
func (c *Client) GetActiveTrip(ctx context.Context, cardID int64) (*Trip, error) {
	var out *Trip
	path := fmt.Sprintf("/api/cards/%d/active-trip", cardID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend %s %s: marshal: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("backend %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend %s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("backend %s %s: decode: %w", method, path, err)
	}
	return nil
}
