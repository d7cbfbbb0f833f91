package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"clinic-server/internal/codec"
	"clinic-server/internal/db"
	"clinic-server/internal/handler"
	"clinic-server/internal/hub"
	"clinic-server/internal/mirror"
	"clinic-server/internal/store"
	"clinic-server/internal/tcpnotify"
)

func main() {
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	httpPort := env("PORT", "8080")
	notifyPort := env("NOTIFY_PORT", "11000")
	dataDir := env("DATA_DIR", "data")
	sqlitePath := env("SQLITE_PATH", filepath.Join(dataDir, "clinic.db"))

	// appointment file store
	st, err := store.Open(dataDir)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	// sqlite: staff accounts, refresh tokens, audit log
	d, err := db.Open(sqlitePath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer d.Close()
	seedStaff(d)

	// optional postgres replica
	var mir *mirror.Mirror
	if url := os.Getenv("MIRROR_DATABASE_URL"); url != "" {
		mir, err = mirror.Open(context.Background(), url)
		if err != nil {
			log.Fatalf("mirror: %v", err)
		}
		defer mir.Close()
		log.Info("mirroring to postgres")
	}

	// broadcast hub and per-process keypair
	h := hub.New()
	cdc, err := codec.New()
	if err != nil {
		log.Fatalf("keypair: %v", err)
	}

	// encrypted TCP notification listener
	var notifyOpts []tcpnotify.Option
	if v := os.Getenv("HANDSHAKE_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("HANDSHAKE_TIMEOUT: %v", err)
		}
		notifyOpts = append(notifyOpts, tcpnotify.WithHandshakeTimeout(time.Duration(secs)*time.Second))
	}
	notify := tcpnotify.New(":"+notifyPort, h, cdc, notifyOpts...)
	if err := notify.Start(); err != nil {
		log.Fatalf("notify listen: %v", err)
	}
	log.Infof("notifications on %s", notify.Addr())

	// http api
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())
	handler.New(st, d, mir, h, secret).Register(e)

	go func() {
		log.Infof("http on :%s", httpPort)
		if err := e.Start(":" + httpPort); err != nil {
			log.Infof("http: %v", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	notify.Close()
	h.Close()
}

// seedStaff creates the built-in accounts when their passwords are set.
// Existing accounts are never overwritten.
func seedStaff(d *db.DB) {
	ctx := context.Background()
	if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
		if err := d.EnsureStaffUser(ctx, "admin", pw, "Administrator", "admin"); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}
	if pw := os.Getenv("STAFF_PASSWORD"); pw != "" {
		if err := d.EnsureStaffUser(ctx, "staff", pw, "Front Desk", "staff"); err != nil {
			log.Fatalf("seed staff: %v", err)
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
