package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"linkdesk.org/internal/auth"
	"linkdesk.org/internal/httpapi"
	"linkdesk.org/internal/linksource"
	"linkdesk.org/internal/mail"
	"linkdesk.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("LINKDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("missing LINKDESK_PG_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	secret := os.Getenv("LINKDESK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing LINKDESK_AUTH_SECRET")
	}
	tokenTTL := 24 * time.Hour
	if raw := os.Getenv("LINKDESK_TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("parse LINKDESK_TOKEN_TTL: %v", err)
		}
		tokenTTL = ttl
	}
	tokens, err := auth.NewTokens(secret, tokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	authOpts := []auth.ServiceOption{}
	if host := os.Getenv("LINKDESK_SMTP_HOST"); host != "" {
		port := 587
		if raw := os.Getenv("LINKDESK_SMTP_PORT"); raw != "" {
			port, err = strconv.Atoi(raw)
			if err != nil {
				log.Fatalf("parse LINKDESK_SMTP_PORT: %v", err)
			}
		}
		mailer, err := mail.NewSMTP(host, port,
			os.Getenv("LINKDESK_SMTP_USERNAME"),
			os.Getenv("LINKDESK_SMTP_PASSWORD"),
			os.Getenv("LINKDESK_SMTP_FROM"))
		if err != nil {
			log.Fatalf("smtp mailer: %v", err)
		}
		authOpts = append(authOpts, auth.WithMailer(mailer))
	}

	authSvc, err := auth.NewService(auth.NewPGStore(db), tokens, authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	links := linksource.NewService(linksource.NewPGStore(db))

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, links)

	addr := os.Getenv("LINKDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting linkdesk-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
