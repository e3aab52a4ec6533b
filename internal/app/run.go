package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"surfsup-server/internal/config"
	db "surfsup-server/internal/db"
	httpapi "surfsup-server/internal/httpapi"
	"surfsup-server/internal/metrics"
	climate "surfsup-server/internal/modules/climate"
	"surfsup-server/internal/modules/climate/views"
	"surfsup-server/internal/schema"
)

const shutdownTimeout = 10 * time.Second

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"metricsEnabled", cfg.MetricsEnabled,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteDSNSet", cfg.SQLiteDSN != "",
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"sqliteLogStatements", cfg.SQLiteLogStatements,
	)

	dbConn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := views.LoadTemplates(); err != nil {
		return err
	}
	mux := NewMux(dbConn, cfg)
	srv := httpapi.NewServer(cfg, mux)

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	return serve(ctx, srv, ln)
}

// openStore opens the climate store and refuses to continue if its layout
// does not match what the API reads.
func openStore(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dbConn, err := db.Open(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := schema.Verify(ctx, dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}
	slog.Info("database connection successful")
	return dbConn, nil
}

// NewMux wires every HTTP route onto one mux.
func NewMux(dbConn *sql.DB, cfg config.Config) *http.ServeMux {
	if cfg.MetricsEnabled {
		metrics.Register()
	}
	mux := httpapi.NewMux(dbConn, cfg.MetricsEnabled)
	climate.RegisterFeature(mux, dbConn)
	return mux
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
