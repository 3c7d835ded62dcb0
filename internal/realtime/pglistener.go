package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PGListener relays Postgres NOTIFY payloads from the change triggers into a
// Hub. It holds its own connection outside the database/sql pool.
type PGListener struct {
	dsn        string
	channel    string
	hub        *Hub
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewPGListener(dsn, channel string, hub *Hub) *PGListener {
	return &PGListener{
		dsn:        dsn,
		channel:    channel,
		hub:        hub,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run listens until ctx is done, reconnecting with exponential backoff.
func (l *PGListener) Run(ctx context.Context) error {
	backoff := l.minBackoff
	log.Info().Str("channel", l.channel).Msg("realtime listener started")
	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			log.Info().Str("channel", l.channel).Msg("realtime listener stopped")
			return nil
		}
		if connected {
			backoff = l.minBackoff
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("realtime listener disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *PGListener) listen(ctx context.Context) (bool, error) {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("listen %s: %w", l.channel, err)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true, err
			}
			return true, fmt.Errorf("wait for notification: %w", err)
		}
		ev, err := DecodeEvent(n.Payload)
		if err != nil {
			log.Error().Err(err).Str("payload", n.Payload).Msg("skipping malformed change event")
			continue
		}
		l.hub.Publish(ev)
	}
}
