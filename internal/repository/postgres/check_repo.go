package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
)

var _ check.Store = (*CheckRepoImpl)(nil)

type CheckRepoImpl struct {
	db *DB
	tx Transactor
}

func NewCheckRepo(db *DB, tx Transactor) *CheckRepoImpl { return &CheckRepoImpl{db: db, tx: tx} }

const (
	checkCols = `name, description, server, port, spacing_ms, timeout_ms, enabled, created_at, updated_at`

	qCheckInsert = `
INSERT INTO periodic_checks (name, description, server, port, spacing_ms, timeout_ms, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + checkCols + `;
`

	qCheckGet = `SELECT ` + checkCols + ` FROM periodic_checks WHERE name = $1;`

	qCheckLock = `SELECT ` + checkCols + ` FROM periodic_checks WHERE name = $1 FOR UPDATE;`

	qCheckList = `SELECT ` + checkCols + ` FROM periodic_checks ORDER BY name;`

	qCheckUpdate = `
UPDATE periodic_checks
SET description = $2, server = $3, port = $4, spacing_ms = $5, timeout_ms = $6, enabled = $7,
    updated_at = NOW()
WHERE name = $1
RETURNING ` + checkCols + `;
`

	qCheckDelete = `DELETE FROM periodic_checks WHERE name = $1;`
)

func scanCheck(row pgx.Row, c *check.Definition) error {
	var spacingMs, timeoutMs int64
	if err := row.Scan(
		&c.Name,
		&c.Description,
		&c.Server,
		&c.Port,
		&spacingMs,
		&timeoutMs,
		&c.Enabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return err
	}
	c.Spacing = time.Duration(spacingMs) * time.Millisecond
	c.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return nil
}

func (r *CheckRepoImpl) Create(ctx context.Context, c *check.Definition) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qCheckInsert,
		c.Name, c.Description, c.Server, c.Port,
		c.Spacing.Milliseconds(), c.Timeout.Milliseconds(), c.Enabled,
	)
	return mapErr("insert check", scanCheck(row, c))
}

func (r *CheckRepoImpl) Get(ctx context.Context, name string) (*check.Definition, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Definition
	if err := scanCheck(r.db.execQueryer(ctx).QueryRow(ctx, qCheckGet, name), &c); err != nil {
		return nil, mapErr(fmt.Sprintf("get check %q", name), err)
	}
	return &c, nil
}

func (r *CheckRepoImpl) List(ctx context.Context) ([]*check.Definition, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qCheckList)
	if err != nil {
		return nil, mapErr("query checks", err)
	}
	defer rows.Close()

	var out []*check.Definition
	for rows.Next() {
		var c check.Definition
		if err := scanCheck(rows, &c); err != nil {
			return nil, mapErr("scan check", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("rows", err)
	}
	return out, nil
}

// Update locks the row before writing so concurrent admin edits serialise.
func (r *CheckRepoImpl) Update(ctx context.Context, c *check.Definition) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		eq := r.db.execQueryer(ctx)

		var cur check.Definition
		if err := scanCheck(eq.QueryRow(ctx, qCheckLock, c.Name), &cur); err != nil {
			return mapErr(fmt.Sprintf("lock check %q", c.Name), err)
		}

		row := eq.QueryRow(ctx, qCheckUpdate,
			c.Name, c.Description, c.Server, c.Port,
			c.Spacing.Milliseconds(), c.Timeout.Milliseconds(), c.Enabled,
		)
		return mapErr(fmt.Sprintf("update check %q", c.Name), scanCheck(row, c))
	})
}

func (r *CheckRepoImpl) Delete(ctx context.Context, name string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qCheckDelete, name)
	if err != nil {
		return mapErr("delete check", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("delete check %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
