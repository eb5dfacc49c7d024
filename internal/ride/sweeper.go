package ride

import (
	"context"
	"log"
	"time"

	"backend-ridelink/internal/db"
	"backend-ridelink/internal/stream"
)

// Sweeper deletes "ride now" requests whose 30-minute window has passed, so
// expiry no longer depends on the creator keeping a page open. Deletion is
// identical to a manual remove, including the published change event.
type Sweeper struct {
	db       db.Querier
	hub      *stream.Hub
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(db db.Querier, hub *stream.Hub, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{db: db, hub: hub, interval: interval, now: time.Now}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("ride sweep error: %v", err)
			} else if n > 0 {
				log.Printf("ride sweep removed %d expired rides", n)
			}
		}
	}
}

// Sweep removes all expired now-rides and reports how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, created_by
		FROM rides
		WHERE preset='now' AND status='open' AND start_time + interval '30 minutes' <= $1
	`, s.now())
	if err != nil {
		return 0, err
	}

	var expired []Ride
	for rows.Next() {
		var r Ride
		if err := rows.Scan(&r.ID, &r.CreatedBy); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, r)
	}
	rows.Close()

	removed := 0
	for _, r := range expired {
		if _, err := s.db.Exec(ctx, `DELETE FROM ride_participants WHERE ride_id=$1`, r.ID); err != nil {
			return removed, err
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM rides WHERE id=$1`, r.ID); err != nil {
			return removed, err
		}
		if s.hub != nil {
			s.hub.Publish(stream.Event{Table: "rides", Action: stream.ActionDelete, ID: r.ID})
		}
		removed++
	}
	return removed, nil
}
