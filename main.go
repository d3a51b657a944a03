package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/config"
	"github.com/nikhilsahni7/TourDesk/db"
	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/nikhilsahni7/TourDesk/handlers"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"github.com/rs/cors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides SERVER_ADDR")
	migrate := pflag.Bool("migrate", false, "apply schema migrations before serving")
	pflag.Parse()

	if err := run(*configPath, *addr, *migrate); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, addr string, migrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	conn, err := db.Open(cfg.DB, log)
	if err != nil {
		return err
	}
	if migrate {
		if err := db.Migrate(conn); err != nil {
			return err
		}
		log.Info("Database migrated")
	}

	sessionStore, err := auth.NewSessionStore(cfg.DB.URL, cfg.Auth.SessionKey)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessionStore.Close()
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.IsProduction()
	defer sessionStore.StopCleanup(sessionStore.Cleanup(30 * time.Minute))

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTTTL)*time.Hour)
	h := handlers.New(handlers.Deps{
		DB:          conn,
		Gate:        gate.New(gate.NewSQLLookup(conn)),
		Surveys:     surveys.NewEngine(surveys.NewGormStore(conn)),
		Auth:        auth.NewAuthenticator(tokens, sessionStore),
		Tokens:      tokens,
		PublicRate:  cfg.Public.RateLimit,
		PublicBurst: cfg.Public.RateBurst,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.Handler(h.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
