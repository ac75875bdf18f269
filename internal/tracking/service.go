package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-projectrun/internal/db"
	"backend-projectrun/internal/shared/geo"
	"backend-projectrun/internal/shared/runstate"

	"github.com/jackc/pgx/v5"
)

var (
	ErrRunNotFound        = errors.New("run not found")
	ErrRunNotActive       = errors.New("run is not in progress")
	ErrInvalidCoordinates = errors.New("latitude must be in [-90, 90] and longitude in [-180, 180]")
	ErrFixBeforeRunStart  = errors.New("position recorded before the run was created")
)

// Broadcaster publishes live updates for a run. *stream.Hub implements it.
type Broadcaster interface {
	BroadcastJSON(runID int64, v any)
}

type Options struct {
	// ValidateFixTime rejects fixes older than the run's creation time.
	ValidateFixTime bool
}

type Service struct {
	db     db.TxQuerier
	hub    Broadcaster
	locker Locker
	opts   Options
	now    func() time.Time
}

func NewService(q db.TxQuerier, hub Broadcaster, locker Locker, opts Options) *Service {
	if locker == nil {
		locker = NewLocalLocker(defaultLockWait)
	}
	return &Service{db: q, hub: hub, locker: locker, opts: opts, now: time.Now}
}

// AddPosition ingests one GPS fix for a run that is in progress.
func (s *Service) AddPosition(ctx context.Context, runID int64, input PositionInput) (Position, error) {
	if input.Latitude == nil || input.Longitude == nil {
		return Position{}, ErrInvalidCoordinates
	}
	cur := Position{
		RunID:     runID,
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
		DateTime:  input.DateTime.Time,
	}
	if err := geo.Valid(point(cur)); err != nil {
		return Position{}, ErrInvalidCoordinates
	}
	if cur.DateTime.IsZero() {
		cur.DateTime = s.now()
	}

	unlock, err := s.locker.Lock(ctx, runID)
	if err != nil {
		return Position{}, fmt.Errorf("lock run %d: %w", runID, err)
	}
	defer unlock()

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var status string
		var createdAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT status, created_at FROM runs WHERE id=$1 FOR SHARE
		`, runID).Scan(&status, &createdAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		if runstate.Status(status) != runstate.InProgress {
			return ErrRunNotActive
		}
		if s.opts.ValidateFixTime && cur.DateTime.Before(createdAt) {
			return ErrFixBeforeRunStart
		}

		prev, err := latestPosition(ctx, tx, runID)
		if err != nil {
			return err
		}
		cur = Derive(prev, cur)

		return tx.QueryRow(ctx, `
			INSERT INTO positions (run_id, latitude, longitude, date_time, distance, speed)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, cur.RunID, cur.Latitude, cur.Longitude, cur.DateTime, cur.Distance, cur.Speed).Scan(&cur.ID)
	})
	if err != nil {
		return Position{}, err
	}

	if s.hub != nil {
		s.hub.BroadcastJSON(runID, Event{Type: EventPosition, Position: &cur})
	}
	return cur, nil
}

func (s *Service) Positions(ctx context.Context, runID int64) ([]Position, error) {
	return LoadPositions(ctx, s.db, runID)
}

// Summary previews the totals the run would get if it finished now.
func (s *Service) Summary(ctx context.Context, runID int64) (Summary, error) {
	positions, err := LoadPositions(ctx, s.db, runID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		RunID:      runID,
		PointCount: len(positions),
		Totals:     Aggregate(positions),
	}, nil
}

// LoadPositions returns every position of a run in insertion order.
func LoadPositions(ctx context.Context, q db.Querier, runID int64) ([]Position, error) {
	rows, err := q.Query(ctx, `
		SELECT id, run_id, latitude, longitude, date_time, distance, speed
		FROM positions WHERE run_id=$1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.RunID, &p.Latitude, &p.Longitude, &p.DateTime, &p.Distance, &p.Speed); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func latestPosition(ctx context.Context, q db.Querier, runID int64) (*Position, error) {
	var p Position
	err := q.QueryRow(ctx, `
		SELECT id, run_id, latitude, longitude, date_time, distance, speed
		FROM positions WHERE run_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, runID).Scan(&p.ID, &p.RunID, &p.Latitude, &p.Longitude, &p.DateTime, &p.Distance, &p.Speed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
