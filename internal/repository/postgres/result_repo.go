package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/result"
)

var _ result.Recorder = (*ResultRepoImpl)(nil)

type ResultRepoImpl struct{ db *DB }

func NewResultRepo(db *DB) *ResultRepoImpl { return &ResultRepoImpl{db: db} }

const (
	qResultInsert = `
INSERT INTO check_results (probe_id, check_name, node, time, result, status, latency_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;
`
	qResultRecent = `
SELECT id, probe_id::text, check_name, node, time, result, status, latency_ms
FROM check_results
ORDER BY time DESC, id DESC
LIMIT $1;
`
	qResultDelete = `DELETE FROM check_results WHERE id = $1;`
)

func (r *ResultRepoImpl) Store(ctx context.Context, res *result.CheckResult) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	err := eq.QueryRow(ctx, qResultInsert,
		res.ProbeID, res.CheckName, res.Host, res.At, res.Result, res.Status, res.Latency.Milliseconds(),
	).Scan(&res.ID)
	return mapErr("insert check result", err)
}

func (r *ResultRepoImpl) GetRecent(ctx context.Context, n int) ([]*result.CheckResult, error) {
	if n <= 0 {
		n = result.DefaultRecent
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qResultRecent, n)
	if err != nil {
		return nil, mapErr("query check results", err)
	}
	defer rows.Close()

	out := make([]*result.CheckResult, 0, n)
	for rows.Next() {
		var (
			res       result.CheckResult
			latencyMs int64
		)
		if err := rows.Scan(&res.ID, &res.ProbeID, &res.CheckName, &res.Host, &res.At,
			&res.Result, &res.Status, &latencyMs); err != nil {
			return nil, mapErr("scan check result", err)
		}
		res.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("rows", err)
	}
	return out, nil
}

func (r *ResultRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qResultDelete, id)
	if err != nil {
		return mapErr("delete check result", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("delete check result %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
