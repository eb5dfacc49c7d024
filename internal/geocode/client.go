package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-ridelink/internal/db"
	"backend-ridelink/internal/shared/apperr"
)

const cacheTTL = 24 * time.Hour

// Place is one geocoder match, coordinates already parsed.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Client talks to a Nominatim-style geocoder. Responses are cached so repeated
// dashboard lookups do not hit the third party.
type Client struct {
	baseURL string
	http    *http.Client
	cache   db.KV
}

func NewClient(baseURL string, cache db.KV) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
	}
}

// nominatim returns coordinates as strings.
type rawPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns up to five forward-geocoded matches for a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return nil, apperr.New(apperr.CodeValidation, "query must be at least 3 characters")
	}

	cacheKey := "geocode:search:" + strings.ToLower(query)
	if cached, hit := c.fromCache(ctx, cacheKey); hit {
		var places []Place
		if err := json.Unmarshal([]byte(cached), &places); err == nil {
			return places, nil
		}
	}

	endpoint := fmt.Sprintf("%s/search?format=json&limit=5&q=%s", c.baseURL, url.QueryEscape(query))
	var raw []rawPlace
	if err := c.get(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		place, err := r.parse()
		if err != nil {
			continue
		}
		places = append(places, place)
	}

	c.toCache(ctx, cacheKey, places)
	return places, nil
}

// Reverse resolves coordinates to a display name. A transport failure comes
// back as NETWORK_ERROR so callers can fall back to showing raw coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	cacheKey := fmt.Sprintf("geocode:reverse:%.5f:%.5f", lat, lng)
	if cached, hit := c.fromCache(ctx, cacheKey); hit {
		var place Place
		if err := json.Unmarshal([]byte(cached), &place); err == nil {
			return place, nil
		}
	}

	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%.6f&lon=%.6f", c.baseURL, lat, lng)
	var raw rawPlace
	if err := c.get(ctx, endpoint, &raw); err != nil {
		return Place{}, err
	}
	if raw.DisplayName == "" {
		return Place{}, apperr.New(apperr.CodeNotFound, "no place at these coordinates")
	}

	place, err := raw.parse()
	if err != nil {
		place = Place{DisplayName: raw.DisplayName, Lat: lat, Lng: lng}
	}

	c.toCache(ctx, cacheKey, place)
	return place, nil
}

func (r rawPlace) parse() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, err
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, err
	}
	return Place{DisplayName: r.DisplayName, Lat: lat, Lng: lng}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.New(apperr.CodeNetwork, "geocoder unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.CodeNetwork, fmt.Sprintf("geocoder returned %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.New(apperr.CodeNetwork, "geocoder returned malformed response")
	}
	return nil
}

func (c *Client) fromCache(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	cached, err := c.cache.Get(ctx, key)
	return cached, err == nil && cached != ""
}

func (c *Client) toCache(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, key, string(raw), cacheTTL)
}
