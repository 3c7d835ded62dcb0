package realtime

import (
	"context"
	"sync"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Filter selects the events a viewer cares about: one order, or every order
// of one user.
type Filter struct {
	OrderID *uuid.UUID
	UserID  *uuid.UUID
}

func (f Filter) Match(ev Event) bool {
	if f.OrderID != nil {
		return ev.OrderID == *f.OrderID
	}
	if f.UserID != nil {
		return ev.UserID != nil && *ev.UserID == *f.UserID
	}
	return false
}

const watchBuffer = 32

type FetchFunc func(ctx context.Context, orderID uuid.UUID) (*domain.OrderDetail, error)

// Sync turns hub events into fresh order snapshots.
type Sync struct {
	hub   *Hub
	fetch FetchFunc
}

func NewSync(hub *Hub, fetch FetchFunc) *Sync {
	return &Sync{hub: hub, fetch: fetch}
}

// Watch subscribes under name and calls onChange with a re-fetched snapshot
// after every matching event. Each event triggers its own fetch; results are
// applied in the order they resolve. Fetch errors are logged and the viewer
// keeps its previous snapshot. The watch ends on Stop, when ctx is done, or
// when another Watch takes the same name.
func (s *Sync) Watch(ctx context.Context, name string, f Filter, onChange func(*domain.OrderDetail)) *Watcher {
	sub := s.hub.Subscribe(name, watchBuffer)
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{done: make(chan struct{})}

	var (
		applyMu  sync.Mutex
		inflight sync.WaitGroup
	)
	apply := func(orderID uuid.UUID) {
		defer inflight.Done()
		detail, err := s.fetch(ctx, orderID)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("channel", name).Str("order_id", orderID.String()).Msg("realtime refetch failed")
			}
			return
		}
		if detail == nil {
			return
		}
		applyMu.Lock()
		defer applyMu.Unlock()
		if ctx.Err() != nil {
			return
		}
		onChange(detail)
	}

	go func() {
		defer func() {
			inflight.Wait()
			cancel()
			close(w.done)
		}()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if !f.Match(ev) {
					continue
				}
				inflight.Add(1)
				go apply(ev.OrderID)
			}
		}
	}()

	w.stop = func() {
		cancel()
		sub.Close()
		// wait out a snapshot being applied right now
		applyMu.Lock()
		applyMu.Unlock()
	}
	return w
}

type Watcher struct {
	stop func()
	done chan struct{}
}

// Stop unsubscribes. It must not be called from onChange.
func (w *Watcher) Stop() {
	w.stop()
}

// Done is closed once the watch has ended and no fetch is in flight.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
