// Package geo implements the pluggable geolocation collaborator the
// access log enriches events with (§4.K, §6 "geolocation (external)").
package geo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Location is the subset of geolocation fields the access log records.
type Location struct {
	Country    string
	City       string
	Region     string
	PostalCode string
	Timezone   string
}

// Provider resolves an IP address to a Location. Implementations are
// expected to fail soft: LogAccess treats a lookup error as "no
// enrichment", never as a reason to drop the event.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// NoopProvider is the default when no geo API is configured: every lookup
// returns an empty Location.
type NoopProvider struct{}

func (NoopProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	return &Location{}, nil
}

// HTTPProvider calls a configurable IP-geolocation web API returning the
// ip-api.com-shaped JSON response, the same one the teacher's corpus
// already models enrichment against.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type apiResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Zip        string  `json:"zip"`
	Timezone   string  `json:"timezone"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("geo: invalid IP address %q", ip)
	}

	url := fmt.Sprintf("%s/%s?fields=status,country,regionName,city,zip,timezone,lat,lon", p.baseURL, ip)
	if p.apiKey != "" {
		url += "&key=" + p.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: provider returned status %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != "" && out.Status != "success" {
		return nil, fmt.Errorf("geo: lookup failed for %s", ip)
	}

	return &Location{
		Country:    out.Country,
		City:       out.City,
		Region:     out.RegionName,
		PostalCode: out.Zip,
		Timezone:   out.Timezone,
	}, nil
}
