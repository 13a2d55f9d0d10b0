package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akabemail-hash/asutkosks/internal/config"
	"github.com/akabemail-hash/asutkosks/internal/database"
	"github.com/akabemail-hash/asutkosks/internal/handler"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/queue"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/router"
	"github.com/akabemail-hash/asutkosks/internal/service"
	"github.com/akabemail-hash/asutkosks/internal/stats"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

// auditLogDir receives visits.log from the visit.recorded consumer.
const auditLogDir = "logs"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("host", cfg.DBHost).Msg("database unavailable")
	}
	defer db.Close()
	if err := database.RunMigrations(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("migrations failed")
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		logging.Warn().Err(err).Msg("redis unavailable; rate limiting and geocode cache disabled")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	codec, err := utils.NewTokenCodec(cfg.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("token codec")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	kiosks := repository.NewKioskRepo(db)
	visits := repository.NewVisitRepo(db)
	visitTypes := repository.NewVisitTypeRepo(db)
	problemTypes := repository.NewProblemTypeRepo(db)

	geoCfg := config.LoadGeocoderConfig()
	var geoCache service.GeocodeCache
	if rdb != nil {
		geoCache = service.NewRedisGeocodeCache(rdb, geoCfg.Prefix, geoCfg.CacheTTL)
	}
	geocoder := service.NewGeocoder(geoCfg, geoCache, nil)

	photos, err := service.NewLocalPhotoStore(cfg.UploadDir, cfg.UploadPrefix)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("photo store")
	}

	var events handler.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		pub := service.NewVisitPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
		go func() {
			err := queue.NewConsumer(cfg.RabbitURL, auditLogDir).Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("visit consumer stopped")
			}
		}()
	}

	aggregator := stats.New(repository.StatsSource{KioskRepo: kiosks, VisitRepo: visits}, cfg.Location)

	e := router.New(cfg, router.Deps{
		Tokens:    codec,
		Accounts:  users,
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Auth:      handler.NewAuthHandler(users, codec, cfg.CookieSecure),
		Users:     handler.NewUserHandler(users, cfg.BcryptCost),
		Roles:     handler.NewRoleHandler(roles),
		Kiosks:    handler.NewKioskHandler(kiosks, geocoder),
		Visits:    handler.NewVisitHandler(visits, kiosks, visitTypes, problemTypes, photos, events),
		Taxonomy:  handler.NewTaxonomyHandler(visitTypes, problemTypes),
		Stats:     handler.NewStatsHandler(aggregator),
	})

	addr := ":" + cfg.Port
	go func() {
		logging.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}
