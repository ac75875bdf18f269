package coaching

import (
	"context"
	"errors"

	"backend-projectrun/internal/auth"
	"backend-projectrun/internal/db"
	"backend-projectrun/internal/shared/geo"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCoachNotFound     = errors.New("coach not found")
	ErrNotACoach         = errors.New("user is not a coach")
	ErrNotAnAthlete      = errors.New("only athletes can subscribe to a coach")
	ErrAlreadySubscribed = errors.New("already subscribed to this coach")
)

// Directory resolves a user's role.
type Directory interface {
	UserType(ctx context.Context, id string) (string, error)
}

type Service struct {
	db    db.Querier
	users Directory
}

func NewService(q db.Querier, users Directory) *Service {
	return &Service{db: q, users: users}
}

func (s *Service) Subscribe(ctx context.Context, athleteID, coachID string) (Subscription, error) {
	coachType, err := s.users.UserType(ctx, coachID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return Subscription{}, ErrCoachNotFound
	}
	if err != nil {
		return Subscription{}, err
	}
	if coachType != auth.TypeCoach {
		return Subscription{}, ErrNotACoach
	}

	athleteType, err := s.users.UserType(ctx, athleteID)
	if errors.Is(err, auth.ErrUserNotFound) || (err == nil && athleteType != auth.TypeAthlete) {
		return Subscription{}, ErrNotAnAthlete
	}
	if err != nil {
		return Subscription{}, err
	}

	sub := Subscription{AthleteID: athleteID, CoachID: coachID}
	err = s.db.QueryRow(ctx, `
		INSERT INTO coach_subscriptions (athlete_id, coach_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`, athleteID, coachID).Scan(&sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrAlreadySubscribed
	}
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

const (
	longestRunQuery = `
		SELECT r.athlete_id, r.distance
		FROM runs r JOIN coach_subscriptions cs ON cs.athlete_id = r.athlete_id
		WHERE cs.coach_id=$1 AND r.status='finished'
		ORDER BY r.distance DESC, r.athlete_id
		LIMIT 1`
	totalDistanceQuery = `
		SELECT r.athlete_id, SUM(r.distance) AS total
		FROM runs r JOIN coach_subscriptions cs ON cs.athlete_id = r.athlete_id
		WHERE cs.coach_id=$1 AND r.status='finished'
		GROUP BY r.athlete_id
		ORDER BY total DESC, r.athlete_id
		LIMIT 1`
	averageSpeedQuery = `
		SELECT r.athlete_id, AVG(r.speed) AS avg_speed
		FROM runs r JOIN coach_subscriptions cs ON cs.athlete_id = r.athlete_id
		WHERE cs.coach_id=$1 AND r.status='finished'
		GROUP BY r.athlete_id
		ORDER BY avg_speed DESC, r.athlete_id
		LIMIT 1`
)

// Analytics runs the three leader queries concurrently.
func (s *Service) Analytics(ctx context.Context, coachID string) (Analytics, error) {
	coachType, err := s.users.UserType(ctx, coachID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return Analytics{}, ErrCoachNotFound
	}
	if err != nil {
		return Analytics{}, err
	}
	if coachType != auth.TypeCoach {
		return Analytics{}, ErrNotACoach
	}

	var out Analytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.LongestRunUser, out.LongestRunValue, err = s.leader(gctx, longestRunQuery, coachID)
		return err
	})
	g.Go(func() error {
		var err error
		out.TotalRunUser, out.TotalRunValue, err = s.leader(gctx, totalDistanceQuery, coachID)
		return err
	})
	g.Go(func() error {
		var err error
		out.SpeedAvgUser, out.SpeedAvgValue, err = s.leader(gctx, averageSpeedQuery, coachID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}
	return out, nil
}

func (s *Service) leader(ctx context.Context, query, coachID string) (*string, *float64, error) {
	var athleteID string
	var value float64
	err := s.db.QueryRow(ctx, query, coachID).Scan(&athleteID, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	value = geo.Round2(value)
	return &athleteID, &value, nil
}
