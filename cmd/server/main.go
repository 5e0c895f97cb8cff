package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"zonegate/internal/access"
	"zonegate/internal/api"
	"zonegate/internal/auth"
	"zonegate/internal/config"
	"zonegate/internal/db"
	"zonegate/internal/notify"
	"zonegate/internal/registry"
	"zonegate/internal/service"
	"zonegate/internal/session"
	"zonegate/internal/store"
	"zonegate/internal/util"
	"zonegate/internal/zones"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	sqdb, err := db.OpenSQLite(cfg.DBPath, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer sqdb.Close()
	if err := db.ApplyMigrationFile(sqdb, "migrations/001_init.sql"); err != nil {
		log.Fatalf("migration: %v", err)
	}

	st := store.New(sqdb)
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		hash, err := auth.HashPassword(cfg.BootstrapAdminPassword)
		if err != nil {
			log.Fatalf("bootstrap admin hash: %v", err)
		}
		if err := st.EnsureAdminAccount(context.Background(), cfg.BootstrapAdminEmail, hash); err != nil {
			log.Fatalf("bootstrap admin create: %v", err)
		}
	}

	reg, err := registry.New(cfg, sqdb)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	catalog, err := zones.Load(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("zone catalog: %v", err)
	}
	log.Printf("zone catalog revision=%s zones=%d", catalog.Revision(), catalog.Len())

	resolver := access.NewResolver(reg, catalog, cfg.MasterCode, cfg.CodeLength)
	sessions := session.New(st, reg, util.Derive32ByteKey(cfg.SessionSealKey),
		cfg.SessionIdleDuration(), cfg.SessionAbsoluteDuration())
	sender := notify.NewSender(cfg)

	svc := service.New(cfg, st, reg, catalog, resolver, sessions, sender)
	r := api.NewRouter(cfg, svc)

	if cfg.CatalogSyncEnabled {
		go svc.RunCatalogSync(context.Background())
	}

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := hsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
