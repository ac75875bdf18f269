package challenge

import (
	"context"
	"errors"
	"fmt"

	"backend-projectrun/internal/db"
	"backend-projectrun/internal/logger"
	"backend-projectrun/internal/run"
	"backend-projectrun/internal/shared/runstate"
)

type Engine struct {
	db  db.Querier
	log *logger.Logger
}

func NewEngine(q db.Querier, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{db: q, log: log}
}

// Evaluate grants every challenge the finished run qualifies for and returns
// the names that were newly created. A failed stats query only skips the
// rules that need it, and a failed grant does not stop the remaining rules;
// all failures are returned joined.
func (e *Engine) Evaluate(ctx context.Context, r run.Run) ([]string, error) {
	if r.Status != runstate.Finished {
		return nil, nil
	}

	var errs []error
	st, err := e.Stats(ctx, r.AthleteID)
	if err != nil {
		errs = append(errs, fmt.Errorf("load stats for %s: %w", r.AthleteID, err))
	}

	var granted []string
	for _, name := range qualifying(st, err == nil, r) {
		created, err := e.Grant(ctx, r.AthleteID, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("grant %q: %w", name, err))
			continue
		}
		if created {
			granted = append(granted, name)
		}
	}
	if len(granted) > 0 {
		e.log.Debug("challenge rules matched", "athlete_id", r.AthleteID, "run_id", r.ID, "granted", granted)
	}
	return granted, errors.Join(errs...)
}

func (e *Engine) Stats(ctx context.Context, athleteID string) (Stats, error) {
	var st Stats
	err := e.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(distance), 0)
		FROM runs WHERE athlete_id=$1 AND status=$2
	`, athleteID, string(runstate.Finished)).Scan(&st.FinishedRuns, &st.FinishedDistance)
	return st, err
}

// Grant records the challenge unless the athlete already holds it and
// reports whether a row was created.
func (e *Engine) Grant(ctx context.Context, athleteID, name string) (bool, error) {
	tag, err := e.db.Exec(ctx, `
		INSERT INTO challenges (athlete_id, full_name)
		VALUES ($1,$2)
		ON CONFLICT (athlete_id, full_name) DO NOTHING
	`, athleteID, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (e *Engine) List(ctx context.Context, athleteID string) ([]Challenge, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id, full_name, athlete_id
		FROM challenges
		WHERE ($1 = '' OR athlete_id = $1)
		ORDER BY id
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Challenge{}
	for rows.Next() {
		var c Challenge
		if err := rows.Scan(&c.ID, &c.FullName, &c.AthleteID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Summary groups holders by challenge name.
func (e *Engine) Summary(ctx context.Context) ([]NameSummary, error) {
	rows, err := e.db.Query(ctx, `
		SELECT c.full_name, u.id, u.first_name, u.last_name
		FROM challenges c JOIN users u ON u.id = c.athlete_id
		ORDER BY c.full_name, u.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []NameSummary{}
	for rows.Next() {
		var name, id, first, last string
		if err := rows.Scan(&name, &id, &first, &last); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].FullName != name {
			out = append(out, NameSummary{FullName: name, Athletes: []Holder{}})
		}
		cur := &out[len(out)-1]
		cur.Athletes = append(cur.Athletes, Holder{ID: id, FullName: fullName(first, last)})
	}
	return out, rows.Err()
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
