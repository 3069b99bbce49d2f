package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

// HTTPGeoResolver maps client IPs to a coarse location through an
// external geo service. Errors propagate so the caller can degrade to
// an empty location.
type HTTPGeoResolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGeoResolver(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPGeoResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPGeoResolver{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type geoResponse struct {
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

func (g *HTTPGeoResolver) Resolve(ctx context.Context, ip string) (entities.GeoLocation, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return entities.GeoLocation{}, nil
	}
	endpoint := g.baseURL + "/v1/lookup/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entities.GeoLocation{}, fmt.Errorf("build geo request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return entities.GeoLocation{}, fmt.Errorf("query geo service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return entities.GeoLocation{}, nil
	default:
		return entities.GeoLocation{}, fmt.Errorf("geo service responded with status %d", resp.StatusCode)
	}

	var payload geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return entities.GeoLocation{}, fmt.Errorf("decode geo response: %w", err)
	}
	return entities.GeoLocation{
		Country: strings.ToUpper(strings.TrimSpace(payload.CountryCode)),
		Region:  strings.TrimSpace(payload.Region),
		City:    strings.TrimSpace(payload.City),
	}, nil
}

var _ ports.GeoResolver = (*HTTPGeoResolver)(nil)
