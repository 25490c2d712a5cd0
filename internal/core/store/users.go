package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wishmail/wishmail/internal/core"
)

// ErrDuplicate is returned when a unique column (user email, wish content)
// already holds the value.
var ErrDuplicate = errors.New("record already exists")

// ErrNotFound is returned when a lookup by key matches nothing.
var ErrNotFound = errors.New("record not found")

const userColumns = `id, name, email, dob, last_sent_year, created_at`

// AddUser inserts a recipient. The email must already be normalized.
func (s *Store) AddUser(ctx context.Context, name, email string, dob time.Time, now time.Time) (*core.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, errors.New("name and email are required")
	}

	created := now.UTC().Unix()
	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (name, email, dob, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, name, email, dob.Format(core.DateLayout), created, created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &core.User{
		ID:        id,
		Name:      name,
		Email:     email,
		DOB:       dob,
		CreatedAt: time.Unix(created, 0).UTC(),
	}, nil
}

// GetUserByEmail returns ErrNotFound when no user has the address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

// DeleteUser removes a user and, through the foreign key, its send logs.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM send_logs WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete user logs: %w", err)
	}
	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns every user ordered by upcoming month and day.
func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY substr(dob, 6, 5), id`)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return collectUsers(rows)
}

// TodaysBirthdays returns users whose birthday falls on day and who have not
// been greeted yet in day's year. day should already be in the schedule's
// location; only its calendar date is used.
func (s *Store) TodaysBirthdays(ctx context.Context, day time.Time) ([]core.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	leapFallback := 0
	if day.Month() == time.February && day.Day() == 28 && !core.IsLeapYear(day.Year()) {
		leapFallback = 1
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (substr(dob, 6, 5) = ? OR (? = 1 AND substr(dob, 6, 5) = '02-29'))
		  AND (last_sent_year IS NULL OR last_sent_year < ?)
		ORDER BY id
	`, day.Format("01-02"), leapFallback, day.Year())
	if err != nil {
		return nil, fmt.Errorf("fetch birthdays: %w", err)
	}
	return collectUsers(rows)
}

// UserStats counts users, today's and this month's birthdays, and users
// already greeted in day's year.
func (s *Store) UserStats(ctx context.Context, day time.Time) (core.UserStats, error) {
	var stats core.UserStats
	if err := s.ready(); err != nil {
		return stats, err
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN substr(dob, 6, 5) = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN substr(dob, 6, 2) = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN last_sent_year = ? THEN 1 ELSE 0 END), 0)
		FROM users
	`, day.Format("01-02"), day.Format("01"), day.Year())

	if err := row.Scan(&stats.Total, &stats.BirthdaysToday, &stats.BirthdaysThisMonth, &stats.GreetedThisYear); err != nil {
		return stats, fmt.Errorf("fetch user stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*core.User, error) {
	var (
		user      core.User
		dob       string
		lastSent  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &dob, &lastSent, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(core.DateLayout, dob)
	if err != nil {
		return nil, fmt.Errorf("user %d has malformed dob %q: %w", user.ID, dob, err)
	}
	user.DOB = parsed
	if lastSent.Valid {
		user.LastSentYear = int(lastSent.Int64)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]core.User, error) {
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var users []core.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
