package room

import (
	"context"
	"time"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/grafana/logrooms/pkg/util/log"
)

// TraceUpdateNotifier is notified when the sweeper ages a trace out of a
// room's active map, so the fan-out layer can emit a final trace-summary
// event.
type TraceUpdateNotifier interface {
	TraceUpdated(roomID, traceID string)
}

// Sweeper periodically ages idle traces out of every room's active map.
type Sweeper struct {
	services.Service

	rooms    *Manager
	interval time.Duration
	notify   TraceUpdateNotifier
}

// NewSweeper creates a Sweeper that checks every room once per interval.
// notify may be nil to skip post-sweep notification (e.g. in tests).
func NewSweeper(rooms *Manager, interval time.Duration, notify TraceUpdateNotifier) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &Sweeper{rooms: rooms, interval: interval, notify: notify}
	s.Service = services.NewBasicService(nil, s.running, nil)
	return s
}

func (s *Sweeper) running(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sweepOnce(now)
		}
	}
}

func (s *Sweeper) sweepOnce(now time.Time) {
	for _, id := range s.rooms.ListRooms() {
		r, ok := s.rooms.Get(id)
		if !ok {
			continue
		}
		moved := r.Traces.Sweep(now)
		if len(moved) == 0 {
			continue
		}
		level.Debug(log.Logger).Log("msg", "aged traces to completed ring", "room", id, "count", len(moved))
		if s.notify == nil {
			continue
		}
		for _, traceID := range moved {
			s.notify.TraceUpdated(id, traceID)
		}
	}
}
