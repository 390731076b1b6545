package postgres

import (
	"context"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

var _ trust.NodeInventory = (*NodeRepoImpl)(nil)

// NodeRepoImpl reads the compute node inventory. Rows are never removed,
// only flagged deleted.
type NodeRepoImpl struct{ db *DB }

func NewNodeRepo(db *DB) *NodeRepoImpl { return &NodeRepoImpl{db: db} }

const (
	qNodesActive = `SELECT host FROM compute_nodes WHERE NOT deleted ORDER BY host;`

	qNodeUpsert = `
INSERT INTO compute_nodes (host) VALUES ($1)
ON CONFLICT (host) DO UPDATE SET deleted = FALSE, deleted_at = NULL;
`
	qNodeMarkDeleted = `UPDATE compute_nodes SET deleted = TRUE, deleted_at = NOW() WHERE host = $1 AND NOT deleted;`
)

func (r *NodeRepoImpl) ListNodes(ctx context.Context) ([]string, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNodesActive)
	if err != nil {
		return nil, mapErr("query compute nodes", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, mapErr("scan compute node", err)
		}
		out = append(out, host)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("rows", err)
	}
	return out, nil
}

// Register adds host to the inventory or revives a deleted row.
func (r *NodeRepoImpl) Register(ctx context.Context, host string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qNodeUpsert, host)
	return mapErr("register compute node", err)
}

func (r *NodeRepoImpl) MarkDeleted(ctx context.Context, host string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qNodeMarkDeleted, host)
	return mapErr("mark compute node deleted", err)
}
