package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultLogPageSize = 25
	maxLogPageSize     = 500
)

type LogEntryRow struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"-"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

func (r LogEntryRow) LevelName() string {
	return slog.Level(r.Level).String()
}

// LogQuery selects a page of log entries, newest first.
type LogQuery struct {
	MinLevel slog.Level
	Page     int // 1-based
	PageSize int
}

func (q LogQuery) normalized() LogQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultLogPageSize
	}
	q.PageSize = min(q.PageSize, maxLogPageSize)
	return q
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO log (timestamp, level, message, attrs)
		VALUES (?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(runTimeLayout),
		r.Level,
		r.Message,
		r.Attrs)
	if err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

// GetLogEntries returns one page of entries and whether an older page exists.
func (d *Database) GetLogEntries(ctx context.Context, q LogQuery) ([]LogEntryRow, bool, error) {
	q = q.normalized()

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, timestamp, level, message, attrs
		FROM log
		WHERE level >= ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		int(q.MinLevel), q.PageSize+1, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, false, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	var ts string
	entries := make([]LogEntryRow, 0, q.PageSize)
	for rows.Next() {
		var r LogEntryRow
		if err := rows.Scan(&r.ID, &ts, &r.Level, &r.Message, &r.Attrs); err != nil {
			return nil, false, fmt.Errorf("scanning log entry: %w", err)
		}
		if r.Timestamp, err = time.Parse(runTimeLayout, ts); err != nil {
			return nil, false, fmt.Errorf("parsing log timestamp %q: %w", ts, err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading log rows: %w", err)
	}

	more := len(entries) > q.PageSize
	if more {
		entries = entries[:q.PageSize]
	}
	return entries, more, nil
}

// PurgeLog keeps the newest maxLogEntries rows.
func (d *Database) PurgeLog(ctx context.Context, maxLogEntries int) error {
	d.logger.Debug("purging log", slog.Int("keep", maxLogEntries))
	_, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)`, maxLogEntries)
	if err != nil {
		return fmt.Errorf("purging log: %w", err)
	}
	return nil
}
