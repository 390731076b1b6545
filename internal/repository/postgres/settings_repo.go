package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

var _ trust.Switch = (*SettingsRepoImpl)(nil)

const keyPeriodicChecks = "periodic_checks_enabled"

type SettingsRepoImpl struct{ db *DB }

func NewSettingsRepo(db *DB) *SettingsRepoImpl { return &SettingsRepoImpl{db: db} }

const (
	qSettingGet = `SELECT value FROM scheduler_settings WHERE key = $1;`

	qSettingPut = `
INSERT INTO scheduler_settings (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
`
)

// PeriodicChecksEnabled defaults to true when the flag was never written.
func (r *SettingsRepoImpl) PeriodicChecksEnabled(ctx context.Context) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var v string
	err := r.db.execQueryer(ctx).QueryRow(ctx, qSettingGet, keyPeriodicChecks).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, mapErr("get periodic checks switch", err)
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, mapErr("parse periodic checks switch", err)
	}
	return on, nil
}

func (r *SettingsRepoImpl) SetPeriodicChecksEnabled(ctx context.Context, enabled bool) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qSettingPut, keyPeriodicChecks, strconv.FormatBool(enabled))
	return mapErr("set periodic checks switch", err)
}
