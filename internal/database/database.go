package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// Service is the handle the rest of the app gets to the pool.
type Service interface {
	// Health pings the pool and reports its state; "status" is "up" or "down".
	Health(ctx context.Context) map[string]string
	DB() *sql.DB
	Close() error
}

type service struct {
	db   *sql.DB
	name string
}

// NewPostgres opens a pgx-backed pool and verifies it with a ping.
func NewPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func New(db *sql.DB, name string) Service {
	return &service{db: db, name: name}
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("database", s.name).Msg("database health check failed")
		return map[string]string{"status": "down", "database": s.name, "error": err.Error()}
	}

	st := s.db.Stats()
	report := map[string]string{
		"status":       "up",
		"database":     s.name,
		"ping":         latency.String(),
		"open":         strconv.Itoa(st.OpenConnections),
		"in_use":       strconv.Itoa(st.InUse),
		"idle":         strconv.Itoa(st.Idle),
		"max_open":     strconv.Itoa(st.MaxOpenConnections),
		"wait_count":   strconv.FormatInt(st.WaitCount, 10),
		"wait_for":     st.WaitDuration.String(),
		"pool_warning": "",
	}
	switch {
	case st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections:
		report["pool_warning"] = "pool exhausted, requests are queueing"
	case st.WaitCount > 0 && st.WaitDuration > time.Second:
		report["pool_warning"] = "requests waited " + st.WaitDuration.Truncate(time.Millisecond).String() + " for a connection"
	default:
		delete(report, "pool_warning")
	}
	return report
}

func (s *service) Close() error {
	log.Info().Str("database", s.name).Msg("disconnected from database")
	return s.db.Close()
}
