package run

import (
	"context"
	"errors"
	"fmt"

	"backend-projectrun/internal/db"
	"backend-projectrun/internal/logger"
	"backend-projectrun/internal/shared/runstate"
	"backend-projectrun/internal/tracking"

	"github.com/jackc/pgx/v5"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrInvalidTransition = errors.New("wrong run status")
	ErrAthleteNotFound   = errors.New("athlete not found")
)

const runColumns = `id, athlete_id, comment, status, created_at, distance, run_time_seconds, speed`

// AthleteDirectory confirms that a user id refers to an athlete.
type AthleteDirectory interface {
	AthleteExists(ctx context.Context, id string) (bool, error)
}

// ChallengeEvaluator awards challenges for a run that has just finished and
// returns the names granted by this call.
type ChallengeEvaluator interface {
	Evaluate(ctx context.Context, r Run) ([]string, error)
}

type Service struct {
	db         db.TxQuerier
	athletes   AthleteDirectory
	challenges ChallengeEvaluator
	hub        tracking.Broadcaster
	log        *logger.Logger
}

func NewService(q db.TxQuerier, athletes AthleteDirectory, challenges ChallengeEvaluator, hub tracking.Broadcaster, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: q, athletes: athletes, challenges: challenges, hub: hub, log: log}
}

func (s *Service) CreateRun(ctx context.Context, input Run) (Run, error) {
	if s.athletes != nil {
		ok, err := s.athletes.AthleteExists(ctx, input.AthleteID)
		if err != nil {
			return Run{}, err
		}
		if !ok {
			return Run{}, ErrAthleteNotFound
		}
	}

	r := Run{AthleteID: input.AthleteID, Comment: input.Comment, Status: runstate.Init}
	row := s.db.QueryRow(ctx, `
		INSERT INTO runs (athlete_id, comment, status)
		VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, r.AthleteID, r.Comment, string(r.Status))
	if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *Service) GetRun(ctx context.Context, id int64) (Run, error) {
	return getRun(ctx, s.db, id, "")
}

func (s *Service) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE ($1 = '' OR athlete_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY id
	`, f.AthleteID, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpdateComment is the only field a client may edit after creation.
func (s *Service) UpdateComment(ctx context.Context, id int64, comment string) (Run, error) {
	r, err := scanRun(s.db.QueryRow(ctx, `
		UPDATE runs SET comment=$2
		WHERE id=$1
		RETURNING `+runColumns, id, comment))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

// DeleteRun removes the run; its positions go with it through ON DELETE CASCADE.
func (s *Service) DeleteRun(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM runs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Start moves a run from init to in_progress.
func (s *Service) Start(ctx context.Context, id int64) (Run, error) {
	r, err := s.transition(ctx, id, runstate.InProgress, func(tx pgx.Tx, r *Run) error {
		_, err := tx.Exec(ctx, `UPDATE runs SET status=$2 WHERE id=$1`, r.ID, string(runstate.InProgress))
		return err
	})
	if err != nil {
		return Run{}, err
	}
	s.publishStatus(r)
	return r, nil
}

// Stop finishes an in-progress run: totals are computed from the stored
// positions and written together with the status in one update. Challenge
// evaluation runs after the commit and cannot undo the finish.
func (s *Service) Stop(ctx context.Context, id int64) (StopResult, error) {
	r, err := s.transition(ctx, id, runstate.Finished, func(tx pgx.Tx, r *Run) error {
		positions, err := tracking.LoadPositions(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		totals := tracking.Aggregate(positions)
		r.Distance = totals.DistanceKm
		r.RunTimeSeconds = totals.ElapsedSeconds
		r.Speed = totals.AverageSpeed

		_, err = tx.Exec(ctx, `
			UPDATE runs
			SET status=$2, distance=$3, run_time_seconds=$4, speed=$5
			WHERE id=$1
		`, r.ID, string(runstate.Finished), r.Distance, r.RunTimeSeconds, r.Speed)
		return err
	})
	if err != nil {
		return StopResult{}, err
	}
	s.publishStatus(r)

	result := StopResult{Run: r, Challenges: []string{}}
	if s.challenges == nil {
		return result, nil
	}
	granted, err := s.challenges.Evaluate(ctx, r)
	if err != nil {
		s.log.Warn("challenge evaluation failed", "run_id", r.ID, "athlete_id", r.AthleteID, "error", err)
	}
	if len(granted) > 0 {
		s.log.Info("challenges granted", "run_id", r.ID, "athlete_id", r.AthleteID, "challenges", granted)
		result.Challenges = granted
	}
	return result, nil
}

func (s *Service) transition(ctx context.Context, id int64, target runstate.Status, apply func(tx pgx.Tx, r *Run) error) (Run, error) {
	var r Run
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		r, err = getRun(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			return err
		}
		if !r.Status.CanTransition(target) {
			return fmt.Errorf("%w: run %d is %s, cannot become %s", ErrInvalidTransition, r.ID, r.Status, target)
		}
		if err := apply(tx, &r); err != nil {
			return err
		}
		r.Status = target
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *Service) publishStatus(r Run) {
	if s.hub == nil {
		return
	}
	event := tracking.Event{Type: tracking.EventStatus, Status: r.Status.String()}
	if r.Status == runstate.Finished {
		event.Totals = &tracking.Totals{DistanceKm: r.Distance, ElapsedSeconds: r.RunTimeSeconds, AverageSpeed: r.Speed}
	}
	s.hub.BroadcastJSON(r.ID, event)
}

func getRun(ctx context.Context, q db.Querier, id int64, lock string) (Run, error) {
	r, err := scanRun(q.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1 `+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var status string
	if err := row.Scan(&r.ID, &r.AthleteID, &r.Comment, &status, &r.CreatedAt, &r.Distance, &r.RunTimeSeconds, &r.Speed); err != nil {
		return Run{}, err
	}
	st, err := runstate.Parse(status)
	if err != nil {
		return Run{}, err
	}
	r.Status = st
	return r, nil
}
