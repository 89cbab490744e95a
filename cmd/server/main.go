package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/internal/config"
	"github.com/jrsteele09/recovery-portal/server"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	localStoragePrefix   = "rup:local"
	sessionStoragePrefix = "rup:session"
)

func main() {
	// A missing .env is fine: the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	c := config.New()
	setupLogger(c)

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx := context.Background()
	displayAppname(c.GetAppName())

	local, session, closeStorage := openStorage(ctx, c)
	defer closeStorage()

	provider := idp.NewProvider(ctx, idp.SettingsFromConfig(c))
	directory := users.NewDirectory(c.GetBackendURL())

	portal, err := server.New(c, provider, directory, local, session)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer portal.Close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           portal,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// openStorage prefers Redis. Without REDIS_URL, or when it is unreachable, both
// scopes live in memory.
func openStorage(ctx context.Context, c config.Config) (local, session storage.Storage, closeFn func()) {
	if addr := c.GetRedisURL(); addr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := storage.DialRedis(dialCtx, addr, c.GetRedisPassword())
		if err == nil {
			log.Info().Str("addr", addr).Msg("Using Redis storage")
			return storage.NewRedis(client, localStoragePrefix, c.GetTokenStoreTTL()),
				storage.NewRedis(client, sessionStoragePrefix, c.GetFlowStateTTL()),
				func() { closeQuietly(client) }
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory storage")
	}

	localMem := storage.NewMemory(c.GetTokenStoreTTL())
	sessionMem := storage.NewMemory(c.GetFlowStateTTL())
	return localMem, sessionMem, func() {
		closeQuietly(localMem)
		closeQuietly(sessionMem)
	}
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Err(err).Msg("Failed to close storage")
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
