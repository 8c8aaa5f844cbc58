// Package search is the HTTP client for the trip matching service, which
// owns driver availability and pricing for published routes.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
	"github.com/TransPort-Lima/service-rides/internal/resolver"
)

const defaultTimeout = 10 * time.Second

// Result is one available driver offer for a searched route.
type Result struct {
	ID        string  `json:"id"`
	Driver    string  `json:"conductor"`
	Price     float64 `json:"precio"`
	Origin    string  `json:"origen"`
	Dest      string  `json:"destino"`
	TimeMin   int     `json:"tiempo"`
	Vehicle   string  `json:"vehiculo"`
	FreeSeats int     `json:"asientos"`
}

// SearchResponse is the matching service's answer for a route query.
type SearchResponse struct {
	Results    []Result `json:"resultados"`
	DistanceKm float64  `json:"distancia,omitempty"`
}

type reserveRequest struct {
	DriverID string `json:"conductor_id"`
	Origin   string `json:"origen"`
	Dest     string `json:"destino"`
}

// ReserveResponse mirrors the matching service's reservation outcome.
type ReserveResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Client talks to the matching service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a matching client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Search queries available drivers for a reconciled route.
func (c *Client) Search(ctx context.Context, req resolver.SearchRequest) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("origen", req.Origin)
	params.Set("destino", req.Destination)
	params.Set("pasajeros", strconv.Itoa(req.Passengers))

	endpoint := fmt.Sprintf("%s/api/buscar?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, shared.NewUnavailableError("matching", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewUnavailableError("matching",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, shared.NewUnavailableError("matching", fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}

// Reserve claims a driver's offer for the given route. A rejected reservation
// is not an error; the service's refusal comes back in the response body.
func (c *Client) Reserve(ctx context.Context, driverID, origin, dest string) (*ReserveResponse, error) {
	body, err := json.Marshal(reserveRequest{DriverID: driverID, Origin: origin, Dest: dest})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/api/reservar"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, shared.NewUnavailableError("matching", err)
	}
	defer resp.Body.Close()

	var out ReserveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, shared.NewUnavailableError("matching", fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}
