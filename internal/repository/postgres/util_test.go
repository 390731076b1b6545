package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/NordCoder/Trustwatch/internal/domain"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr("op", nil))
	assert.ErrorIs(t, mapErr("op", pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, mapErr("op", &pgconn.PgError{Code: "23505"}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, mapErr("op", &pgconn.PgError{Code: "23514", ConstraintName: "spacing"}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, mapErr("op", &pgconn.PgError{Code: "08006"}), domain.ErrPersistence)
	assert.ErrorIs(t, mapErr("op", errors.New("conn reset")), domain.ErrPersistence)

	err := mapErr("get check", pgx.ErrNoRows)
	assert.Contains(t, err.Error(), "get check")
}
