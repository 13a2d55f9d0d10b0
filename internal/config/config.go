package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
)

// minSecretLen is the shortest JWT_SECRET accepted at startup.
const minSecretLen = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string         // application environment (development, production)
	Port           string         // HTTP port to listen on
	DBUser         string         // database username
	DBPass         string         // database password (optional)
	DBHost         string         // database host address
	DBPort         string         // database port number
	DBName         string         // database name
	JWTSecret      string         // secret used to sign session tokens
	BcryptCost     int            // bcrypt cost for password hashing
	RequestTimeout time.Duration  // per-request deadline
	Location       *time.Location // zone used for "today" and "first of month"
	UploadDir      string         // local directory holding visit photos
	UploadPrefix   string         // public URL prefix for UploadDir
	CookieSecure   bool           // Secure attribute of the session cookie
	CORSOrigins    []string       // allowed origins; empty means same-origin only
	LogLevel       string
	LogFormat      string
	EventsEnabled  bool   // publish visit.recorded events
	RabbitURL      string // AMQP broker URL
}

// IsProduction reports whether upstream error details must be hidden.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Load reads an optional .env file, then the process environment, and returns
// a Config.  Every missing or invalid required variable is reported in the
// returned error; there are no built-in defaults for secrets or credentials.
func Load() (Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()

	var problems []string
	require := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			problems = append(problems, "missing required env var: "+key)
		}
		return v
	}

	cfg := Config{
		Env:           envStr("APP_ENV", "development"),
		Port:          envStr("APP_PORT", "3000"),
		DBUser:        require("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        require("DB_HOST"),
		DBPort:        require("DB_PORT"),
		DBName:        require("DB_NAME"),
		JWTSecret:     require("JWT_SECRET"),
		UploadDir:     envStr("UPLOAD_DIR", "uploads"),
		UploadPrefix:  envStr("PUBLIC_UPLOAD_PREFIX", "/uploads"),
		CookieSecure:  envBool("COOKIE_SECURE", true),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		LogFormat:     envStr("LOG_FORMAT", "json"),
		EventsEnabled: envBool("EVENTS_ENABLED", false),
		RabbitURL:     envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}
	if cfg.EventsEnabled && cfg.RabbitURL == "" {
		problems = append(problems, "EVENTS_ENABLED requires RABBITMQ_URL")
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < minSecretLen {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLen))
	}

	cost, err := strconv.Atoi(envStr("BCRYPT_COST", "10"))
	if err != nil || cost < 4 || cost > 31 {
		problems = append(problems, fmt.Sprintf("invalid BCRYPT_COST: %q", os.Getenv("BCRYPT_COST")))
	}
	cfg.BcryptCost = cost

	timeout, err := time.ParseDuration(envStr("REQUEST_TIMEOUT", "15s"))
	if err != nil || timeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid REQUEST_TIMEOUT: %q", os.Getenv("REQUEST_TIMEOUT")))
	}
	cfg.RequestTimeout = timeout

	loc, err := time.LoadLocation(envStr("APP_TIMEZONE", "UTC"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("invalid APP_TIMEZONE: %v", err))
		loc = time.UTC
	}
	cfg.Location = loc

	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}
