package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/akabemail-hash/asutkosks/internal/config"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/metrics"
)

// Point is a resolved coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

var (
	// ErrAddressNotFound means the geocoder answered but had no match.
	ErrAddressNotFound = errors.New("address not found")
	// ErrGeocoderUnavailable means the circuit is open after repeated failures.
	ErrGeocoderUnavailable = errors.New("geocoder temporarily unavailable")
)

// GeocodeCache stores positive lookups.  Misses return ok=false.
type GeocodeCache interface {
	Get(ctx context.Context, address string) (Point, bool, error)
	Set(ctx context.Context, address string, p Point) error
}

// statusError is a non-2xx answer from the geocoder.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "geocoder error: " + e.status }

// breakerFailure reports whether err says the upstream is unhealthy.  Client
// cancellation and 4xx answers do not.
func breakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocoder resolves free-text addresses through a Nominatim-compatible
// search endpoint, behind a circuit breaker and an optional cache.
type Geocoder struct {
	cfg    config.GeocoderConfig
	client *http.Client
	cache  GeocodeCache
	cb     *gobreaker.CircuitBreaker[[]nominatimPlace]
}

// NewGeocoder builds a Geocoder.  cache may be nil.
func NewGeocoder(cfg config.GeocoderConfig, cache GeocodeCache, client *http.Client) *Geocoder {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	maxFailures := uint32(cfg.MaxFailures)
	cb := gobreaker.NewCircuitBreaker[[]nominatimPlace](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool { return !breakerFailure(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Geocoder{cfg: cfg, client: client, cache: cache, cb: cb}
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Geocode returns the first match for address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (Point, error) {
	key := cacheKey(address)
	if key == "" {
		return Point{}, ErrAddressNotFound
	}
	if g.cache != nil {
		p, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("geocode cache read failed")
		} else if ok {
			metrics.GeocoderRequests.WithLabelValues("cached").Inc()
			return p, nil
		}
	}

	places, err := g.cb.Execute(func() ([]nominatimPlace, error) { return g.search(ctx, address) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.GeocoderRequests.WithLabelValues("open").Inc()
			return Point{}, ErrGeocoderUnavailable
		}
		metrics.GeocoderRequests.WithLabelValues("error").Inc()
		return Point{}, err
	}
	if len(places) == 0 {
		metrics.GeocoderRequests.WithLabelValues("miss").Inc()
		return Point{}, ErrAddressNotFound
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLon != nil {
		metrics.GeocoderRequests.WithLabelValues("error").Inc()
		return Point{}, fmt.Errorf("geocoder returned invalid coordinates %q,%q", places[0].Lat, places[0].Lon)
	}
	p := Point{Lat: lat, Lon: lon}
	metrics.GeocoderRequests.WithLabelValues("hit").Inc()

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, p); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("geocode cache write failed")
		}
	}
	return p, nil
}

func (g *Geocoder) search(ctx context.Context, address string) ([]nominatimPlace, error) {
	u, err := url.Parse(g.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("geocoder url: %w", err)
	}
	q := u.Query()
	q.Set("format", "json")
	q.Set("q", address)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("geocoder response: %w", err)
	}
	return places, nil
}
