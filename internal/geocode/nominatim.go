// Package geocode wraps the Nominatim reverse and forward geocoding
// endpoints. Both directions are best effort: callers treat any error as
// "no result" and degrade.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"go.uber.org/zap"
)

// LimaViewbox bounds forward geocoding to the metropolitan service area.
var LimaViewbox = geo.BoundingBox{Left: -77.20, Top: -11.90, Right: -76.80, Bottom: -12.25}

// Config holds the client's settings.
type Config struct {
	BaseURL      string
	UserAgent    string
	Language     string
	CountryCodes string
	Viewbox      geo.BoundingBox
	Timeout      time.Duration
}

// Client talks to a Nominatim-compatible geocoder.
type Client struct {
	baseURL      string
	userAgent    string
	language     string
	countryCodes string
	viewbox      geo.BoundingBox
	client       *http.Client
	logger       *zap.Logger
}

// NewClient creates a geocoding client, applying defaults for unset fields.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "transport-service-rides/1.0"
	}
	language := cfg.Language
	if language == "" {
		language = "es"
	}
	countryCodes := cfg.CountryCodes
	if countryCodes == "" {
		countryCodes = "pe"
	}
	viewbox := cfg.Viewbox
	if viewbox == (geo.BoundingBox{}) {
		viewbox = LimaViewbox
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:      baseURL,
		userAgent:    userAgent,
		language:     language,
		countryCodes: countryCodes,
		viewbox:      viewbox,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

type reverseAddress struct {
	Road          string `json:"road"`
	Pedestrian    string `json:"pedestrian"`
	Footway       string `json:"footway"`
	Path          string `json:"path"`
	Cycleway      string `json:"cycleway"`
	Residential   string `json:"residential"`
	Highway       string `json:"highway"`
	HouseNumber   string `json:"house_number"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Village       string `json:"village"`
	Town          string `json:"town"`
	CityDistrict  string `json:"city_district"`
	City          string `json:"city"`
	Municipality  string `json:"municipality"`
	County        string `json:"county"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
}

type reverseResponse struct {
	DisplayName string          `json:"display_name"`
	Name        string          `json:"name"`
	Address     *reverseAddress `json:"address"`
}

// Reverse converts coordinates into a short human-readable address.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return "", err
	}

	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	values.Set("addressdetails", "1")
	values.Set("accept-language", c.language)
	values.Set("zoom", "19")

	var payload reverseResponse
	if err := c.get(ctx, c.baseURL+"/reverse?"+values.Encode(), &payload); err != nil {
		return "", err
	}

	if addr := formatAddress(&payload); addr != "" {
		return addr, nil
	}
	if payload.DisplayName != "" {
		return payload.DisplayName, nil
	}
	return "", fmt.Errorf("reverse geocode returned no address for %.5f,%.5f", lat, lng)
}

// formatAddress composes "street house, area, city, state postcode" from the
// structured fields, preferring the most specific way name available.
func formatAddress(r *reverseResponse) string {
	if r == nil || r.Address == nil {
		return ""
	}
	a := r.Address

	line1 := firstNonEmpty(a.Road, a.Pedestrian, a.Footway, a.Path, a.Cycleway, a.Residential, a.Highway, r.Name)
	if line1 != "" && a.HouseNumber != "" {
		line1 = line1 + " " + a.HouseNumber
	}

	area := firstNonEmpty(a.Neighbourhood, a.Suburb, a.Village, a.Town, a.CityDistrict)
	city := firstNonEmpty(a.City, a.Town, a.Municipality, a.County)
	line2 := joinNonEmpty(", ", area, city, a.State, a.Postcode)

	return joinNonEmpty(", ", line1, line2)
}

type forwardItem struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Forward resolves free text to the single best coordinate match inside the
// configured viewbox. The second return is false when nothing matched.
func (c *Client) Forward(ctx context.Context, query string) (geo.Point, bool, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return geo.Point{}, false, fmt.Errorf("query is empty")
	}

	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("q", q)
	values.Set("addressdetails", "1")
	values.Set("accept-language", c.language)
	values.Set("limit", "1")
	values.Set("countrycodes", c.countryCodes)
	values.Set("viewbox", c.viewbox.Viewbox())
	values.Set("bounded", "1")

	var payload []forwardItem
	if err := c.get(ctx, c.baseURL+"/search?"+values.Encode(), &payload); err != nil {
		return geo.Point{}, false, err
	}
	if len(payload) == 0 {
		return geo.Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(payload[0].Lat), 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("malformed latitude %q: %w", payload[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(payload[0].Lon), 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("malformed longitude %q: %w", payload[0].Lon, err)
	}
	return geo.Point{Lat: lat, Lng: lng}, true, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.language)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("geocoder status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
