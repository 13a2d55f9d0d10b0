package config

import "time"

// GeocoderConfig configures the address lookup used by GET /api/kiosks/geocode.
// Results are cached in Redis under Prefix for CacheTTL when a client is available.
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Prefix    string

	// circuit breaker
	MaxFailures  int
	OpenInterval time.Duration
}

// LoadGeocoderConfig reads GEOCODER_* variables.  Defaults point at the public
// Nominatim instance.
func LoadGeocoderConfig() GeocoderConfig {
	cfg := GeocoderConfig{
		BaseURL:      envStr("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		UserAgent:    envStr("GEOCODER_USER_AGENT", "KioskManagementApp/1.0"),
		Timeout:      envDur("GEOCODER_TIMEOUT", 5*time.Second),
		CacheTTL:     envDur("GEOCODER_CACHE_TTL", 24*time.Hour),
		Prefix:       envStr("GEOCODER_CACHE_PREFIX", "kiosk:geo"),
		MaxFailures:  envInt("GEOCODER_MAX_FAILURES", 5),
		OpenInterval: envDur("GEOCODER_OPEN_INTERVAL", 30*time.Second),
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	return cfg
}
