package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `u.id, u.email, u.username, u.first_name, u.last_name, u.is_staff, u.created_at, u.updated_at,
		(SELECT COUNT(*) FROM runs r WHERE r.athlete_id = u.id AND r.status = 'finished') AS runs_finished`

// UserType resolves the role of a non-superuser account.
func (s *Service) UserType(ctx context.Context, id string) (string, error) {
	var isStaff bool
	err := s.db.QueryRow(ctx, `SELECT is_staff FROM users WHERE id=$1 AND NOT is_superuser`, id).Scan(&isStaff)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return roleOf(isStaff), nil
}

// AthleteExists reports whether id names an athlete account. Coaches and
// unknown ids are both reported as false.
func (s *Service) AthleteExists(ctx context.Context, id string) (bool, error) {
	typ, err := s.UserType(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return typ == TypeAthlete, nil
}

// Users lists non-superuser accounts, optionally narrowed to one type.
func (s *Service) Users(ctx context.Context, typ string) ([]User, error) {
	switch typ {
	case "", TypeAthlete, TypeCoach:
	default:
		return nil, ErrUnknownUserType
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE NOT u.is_superuser AND ($1 = '' OR u.is_staff = ($1 = 'coach'))
		ORDER BY u.created_at, u.id
	`, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.id=$1 AND NOT u.is_superuser
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt, &u.RunsFinished); err != nil {
		return User{}, err
	}
	u.Type = roleOf(u.IsStaff)
	return u, nil
}
