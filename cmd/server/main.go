package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/api"
	"github.com/obscyra/rooms/internal/api/handlers"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/download"
	"github.com/obscyra/rooms/internal/geo"
	"github.com/obscyra/rooms/internal/invite"
	"github.com/obscyra/rooms/internal/mailer"
	"github.com/obscyra/rooms/internal/presence"
	"github.com/obscyra/rooms/internal/quota"
	"github.com/obscyra/rooms/internal/ratelimit"
	"github.com/obscyra/rooms/internal/reaper"
	"github.com/obscyra/rooms/internal/repositories"
	"github.com/obscyra/rooms/internal/room"
	"github.com/obscyra/rooms/internal/upload"
)

func main() {
	cfg := config.Envs

	repositories.ConnectDatabase()
	if err := repositories.InitStore(cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, cfg.R2.AccountID, cfg.R2.BucketName, cfg.R2.Region); err != nil {
		log.Fatalf("failed to initialize object store: %v", err)
	}
	db := repositories.DB
	store := repositories.Store{}

	geoProvider := geoProviderFor(cfg)
	accessLog := accesslog.NewLogger(db, geoProvider)

	scheduler := room.NewTimerScheduler()
	lifecycle := &room.Engine{
		DB:                   db,
		Store:                store,
		Scheduler:            scheduler,
		DestructionCountdown: cfg.Room.DestructionCountdown,
	}

	presenceStore := &presence.Store{DB: db, ActiveWindow: cfg.Room.ActiveWindow}
	capacity := &presence.Capacity{Presence: presenceStore}

	quotaEngine := &quota.Engine{DB: db}
	uploadOrch := &upload.Orchestrator{
		DB:         db,
		Store:      store,
		Quota:      quotaEngine,
		PartURLTTL: cfg.Room.UploadPartURLTTL,
	}

	downloadCoord := &download.Coordinator{
		DB:              db,
		Store:           store,
		Lifecycle:       lifecycle,
		Scheduler:       scheduler,
		AccessLog:       accessLog,
		GetURLTTL:       cfg.Room.DownloadURLTTL,
		BurnDeleteDelay: cfg.Room.BurnDeleteDelay,
	}
	archiver := &download.Archiver{Store: store}

	mailSender := mailer.NewSender(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     atoiOr(cfg.SMTPPort, 587),
		User:     cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFromAddr,
		FromName: "Rooms",
		UseTLS:   cfg.SMTPHost != "",
	})

	limiter := ratelimit.NewLimiter()
	overload := ratelimit.NewOverloadGuard(ratelimit.ProcSampler{}, cfg.Overload)

	inviteFlow := &invite.Flow{
		DB:      db,
		Limiter: limiter,
		Invite:  cfg.Invite,
		Rate:    cfg.RateLimit,
		Mailer:  mailSender,
	}

	handlers.Init(&handlers.Deps{
		DB:        db,
		Store:     store,
		Auth:      &auth.Store{DB: db},
		Presence:  presenceStore,
		Capacity:  capacity,
		Quota:     quotaEngine,
		Upload:    uploadOrch,
		Download:  downloadCoord,
		Archiver:  archiver,
		Lifecycle: lifecycle,
		Invite:    inviteFlow,
		AccessLog: accessLog,
		Limiter:   limiter,
		Overload:  overload,
		Cfg:       cfg,
	})

	rp := &reaper.Reaper{
		DB:             db,
		Store:          store,
		StaleUploadAge: cfg.Reaper.MultipartStaleAfter,
	}
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go runReaperLoop(reaperCtx, rp, cfg.Reaper.Interval)

	mux := api.SetupRouter()
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Minute,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting rooms server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on port %s: %v", cfg.Port, err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	stopReaper()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func geoProviderFor(cfg config.Config) geo.Provider {
	if cfg.GeoAPIBaseURL == "" {
		return geo.NoopProvider{}
	}
	return geo.NewHTTPProvider(cfg.GeoAPIBaseURL, cfg.GeoAPIKey)
}

func runReaperLoop(ctx context.Context, rp *reaper.Reaper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.Run(ctx)
		}
	}
}

func atoiOr(s string, fallback int) int {
	n := fallback
	fmt.Sscanf(s, "%d", &n)
	return n
}
