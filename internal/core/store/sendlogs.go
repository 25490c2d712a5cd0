package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wishmail/wishmail/internal/core"
)

const defaultLogLimit = 100

// RecordSend appends a send log row. A successful send also stamps the
// user's last_sent_year with at's year so the daily job skips them until
// next year. at should be in the schedule's location.
func (s *Store) RecordSend(ctx context.Context, userID int64, status core.SendStatus, errMsg string, at time.Time) (err error) {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin send log: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if status == core.SendStatusSuccess {
		if _, err = tx.ExecContext(ctx, `
			UPDATE users SET last_sent_year = ?, updated_at = ? WHERE id = ?
		`, at.Year(), at.UTC().Unix(), userID); err != nil {
			return fmt.Errorf("update last sent year: %w", err)
		}
	}

	var msg sql.NullString
	if errMsg != "" {
		msg = sql.NullString{String: errMsg, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO send_logs (user_id, sent_at, status, error_msg)
		VALUES (?, ?, ?, ?)
	`, userID, at.UTC().Unix(), string(status), msg); err != nil {
		return fmt.Errorf("insert send log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit send log: %w", err)
	}
	return nil
}

// RecentSendLogs returns the newest logs first, joined with the user's name
// and address. A non-positive limit means 100.
func (s *Store) RecentSendLogs(ctx context.Context, limit int) ([]core.SendLog, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT l.id, l.user_id, COALESCE(u.name, ''), COALESCE(u.email, ''), l.sent_at, l.status, l.error_msg
		FROM send_logs l
		LEFT JOIN users u ON u.id = l.user_id
		ORDER BY l.sent_at DESC, l.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch send logs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var logs []core.SendLog
	for rows.Next() {
		var (
			entry  core.SendLog
			sentAt int64
			status string
			errMsg sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.UserEmail, &sentAt, &status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan send log: %w", err)
		}
		entry.SentAt = time.Unix(sentAt, 0).UTC()
		entry.Status = core.SendStatus(status)
		entry.ErrorMsg = errMsg.String
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate send logs: %w", err)
	}
	return logs, nil
}

// CountSends counts logs with status sent at or after since.
func (s *Store) CountSends(ctx context.Context, status core.SendStatus, since time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM send_logs WHERE status = ? AND sent_at >= ?
	`, string(status), since.UTC().Unix())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count send logs: %w", err)
	}
	return count, nil
}
