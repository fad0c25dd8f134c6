package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoResult reports that the API answered but had nothing for the
// query, as opposed to a transport or server failure.
var ErrNoResult = errors.New("no result for query")

// AddressInfo is the resolved identity of a place.
type AddressInfo struct {
	Name              string
	FormattedAddress  string
	AddressComponents []string
}

// Resolver turns place IDs and coordinates into addresses.
type Resolver interface {
	PlaceDetails(ctx context.Context, placeID string) (AddressInfo, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// ClientConfig points the client at a Maps-compatible API.
type ClientConfig struct {
	APIKey          string
	PlaceDetailsURL string
	GeocodeURL      string
}

func (cfg ClientConfig) placeDetailsEndpoint() string {
	if s := strings.TrimSpace(cfg.PlaceDetailsURL); s != "" {
		return s
	}
	return "https://maps.googleapis.com/maps/api/place/details/json"
}

func (cfg ClientConfig) geocodeEndpoint() string {
	if s := strings.TrimSpace(cfg.GeocodeURL); s != "" {
		return s
	}
	return "https://maps.googleapis.com/maps/api/geocode/json"
}

// Client resolves addresses against the Google Maps web services.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient requires an API key; endpoint overrides are for tests and
// proxies.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("maps api key missing")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// PlaceDetails fetches the name and formatted address behind a place ID.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (AddressInfo, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,formatted_address,address_component")
	params.Set("key", c.cfg.APIKey)

	var data struct {
		Status string `json:"status"`
		Result *struct {
			Name              string `json:"name"`
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName string `json:"long_name"`
			} `json:"address_components"`
		} `json:"result"`
		ErrorMessage string `json:"error_message"`
	}
	if err := c.get(ctx, c.cfg.placeDetailsEndpoint(), params, &data); err != nil {
		return AddressInfo{}, err
	}
	if data.Status != "OK" || data.Result == nil {
		return AddressInfo{}, fmt.Errorf("%w: place details status %s: %s", ErrNoResult, data.Status, data.ErrorMessage)
	}
	info := AddressInfo{Name: data.Result.Name, FormattedAddress: data.Result.FormattedAddress}
	for _, comp := range data.Result.AddressComponents {
		info.AddressComponents = append(info.AddressComponents, comp.LongName)
	}
	return info, nil
}

// ReverseGeocode resolves a coordinate pair to the first matching
// formatted address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("key", c.cfg.APIKey)

	var data struct {
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
		ErrorMessage string `json:"error_message"`
	}
	if err := c.get(ctx, c.cfg.geocodeEndpoint(), params, &data); err != nil {
		return "", err
	}
	if data.Status != "OK" || len(data.Results) == 0 {
		return "", fmt.Errorf("%w: reverse geocode status %s: %s", ErrNoResult, data.Status, data.ErrorMessage)
	}
	return data.Results[0].FormattedAddress, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("maps status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
