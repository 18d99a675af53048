package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"terrenos/internal/adapters/authgw"
	"terrenos/internal/adapters/geocode"
	server "terrenos/internal/adapters/http_server"
	"terrenos/internal/adapters/objstore"
	"terrenos/internal/adapters/observability"
	redisad "terrenos/internal/adapters/redis"
	"terrenos/internal/app"
	"terrenos/internal/shared"
	mysqlrepo "terrenos/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	store := objstore.New(cfg.StorageBase, cfg.ServiceKey, cfg.Bucket)
	verifier := authgw.New(cfg.AuthBase, cfg.ServiceKey)
	geo := geocode.New(cfg.GeocodeBase, 1)

	catalog := app.NewCatalogService(repo, cache, cfg.CacheTTL)
	mod := app.NewModerationService(repo, repo, store, cache, cfg.Workers)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	auth := server.NewAuth(verifier, cfg.AdminEmails)
	srv.MountHandlers(&server.Handlers{Catalog: catalog, Mod: mod, Geo: geo}, auth)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
