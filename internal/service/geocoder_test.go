package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akabemail-hash/asutkosks/internal/config"
)

type memCache struct {
	m map[string]Point
}

func (c *memCache) Get(_ context.Context, k string) (Point, bool, error) {
	p, ok := c.m[k]
	return p, ok, nil
}

func (c *memCache) Set(_ context.Context, k string, p Point) error {
	c.m[k] = p
	return nil
}

func testGeocoderConfig(url string) config.GeocoderConfig {
	return config.GeocoderConfig{
		BaseURL:      url,
		UserAgent:    "KioskManagementApp/1.0",
		Timeout:      2 * time.Second,
		MaxFailures:  2,
		OpenInterval: time.Minute,
	}
}

func TestGeocodeFirstMatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "KioskManagementApp/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "Nizami 5, Baku", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"lat":"40.3777","lon":"49.8920"},{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	cache := &memCache{m: map[string]Point{}}
	g := NewGeocoder(testGeocoderConfig(srv.URL), cache, srv.Client())

	p, err := g.Geocode(context.Background(), "Nizami 5, Baku")
	require.NoError(t, err)
	assert.InDelta(t, 40.3777, p.Lat, 1e-9)
	assert.InDelta(t, 49.8920, p.Lon, 1e-9)

	// second lookup, differently spaced, is served from cache
	p2, err := g.Geocode(context.Background(), "  nizami 5,   BAKU ")
	require.NoError(t, err)
	assert.Equal(t, p, p2)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGeocodeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	_, err := g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestGeocodeUpstreamErrorOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	for i := 0; i < 2; i++ {
		_, err := g.Geocode(context.Background(), "somewhere")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrGeocoderUnavailable)
	}

	_, err := g.Geocode(context.Background(), "somewhere")
	assert.ErrorIs(t, err, ErrGeocoderUnavailable)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGeocodeClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	for i := 0; i < 4; i++ {
		_, err := g.Geocode(context.Background(), "somewhere")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrGeocoderUnavailable)
	}
	assert.EqualValues(t, 4, calls.Load())
}

func TestGeocodeCancelledCallerDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := g.Geocode(ctx, "somewhere")
		assert.ErrorIs(t, err, context.Canceled)
	}

	p, err := g.Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Lat, 1e-9)
}

func TestBreakerFailure(t *testing.T) {
	assert.False(t, breakerFailure(nil))
	assert.False(t, breakerFailure(fmt.Errorf("geocoder request: %w", context.Canceled)))
	assert.False(t, breakerFailure(&statusError{code: http.StatusNotFound, status: "404 Not Found"}))
	assert.True(t, breakerFailure(&statusError{code: http.StatusBadGateway, status: "502 Bad Gateway"}))
	assert.True(t, breakerFailure(errors.New("connection refused")))
}

func TestGeocodeMissDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	for i := 0; i < 5; i++ {
		_, err := g.Geocode(context.Background(), "nowhere")
		assert.ErrorIs(t, err, ErrAddressNotFound)
	}
}

func TestGeocodeBadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"1"}]`))
	}))
	defer srv.Close()

	g := NewGeocoder(testGeocoderConfig(srv.URL), nil, srv.Client())
	_, err := g.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAddressNotFound)
}

func TestGeocodeBlankAddress(t *testing.T) {
	g := NewGeocoder(testGeocoderConfig("http://127.0.0.1:1"), nil, nil)
	_, err := g.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrAddressNotFound)
}
