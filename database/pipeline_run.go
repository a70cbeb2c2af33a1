package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Fixed width so text ordering in sqlite follows time ordering.
const runTimeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

type PipelineRunRow struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Rows       int       `json:"rows"`
	ChartBytes int       `json:"chartBytes"`
}

func (r PipelineRunRow) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (d *Database) SavePipelineRun(ctx context.Context, r PipelineRunRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO pipeline_run (id, started_at, finished_at, status, error, rows, chart_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			error = excluded.error,
			rows = excluded.rows,
			chart_bytes = excluded.chart_bytes`,
		r.ID,
		r.StartedAt.UTC().Format(runTimeLayout),
		r.FinishedAt.UTC().Format(runTimeLayout),
		r.Status,
		r.Error,
		r.Rows,
		r.ChartBytes)
	if err != nil {
		return fmt.Errorf("saving pipeline run: %w", err)
	}
	return nil
}

func (d *Database) GetRecentPipelineRuns(ctx context.Context, limit int) ([]PipelineRunRow, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, error, rows, chart_bytes
		FROM pipeline_run
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRunRow
	for rows.Next() {
		var r PipelineRunRow
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &r.Error, &r.Rows, &r.ChartBytes); err != nil {
			return nil, fmt.Errorf("scanning pipeline run: %w", err)
		}
		if r.StartedAt, err = time.Parse(runTimeLayout, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(runTimeLayout, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pipeline runs: %w", err)
	}

	return runs, nil
}

func (d *Database) PurgePipelineRuns(ctx context.Context, retentionDays int) error {
	before := time.Now().Add(-24 * time.Hour * time.Duration(retentionDays)).UTC().Format(runTimeLayout)
	res, err := d.write.ExecContext(ctx, `DELETE FROM pipeline_run WHERE started_at < ?`, before)
	if err != nil {
		return fmt.Errorf("purging pipeline runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "pipeline_run"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from pipeline_run", n))
	}
	return nil
}
