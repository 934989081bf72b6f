package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestStoreErr_TranslatesConnectivityFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"closed connection", ErrConnectionClosed},
		{"wrapped closed connection", fmt.Errorf("query: %w", ErrConnectionClosed)},
		{"connection exception sqlstate", &pgconn.PgError{Code: "08006"}},
		{"connection does not exist", &pgconn.PgError{Code: "08003"}},
		{"network error", fakeNetError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeErr("failed to save player", tt.err)
			assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStoreErr_LeavesOtherErrorsAlone(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}},
		{"syntax error", &pgconn.PgError{Code: "42601"}},
		{"plain error", errors.New("scan failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeErr("failed to save player", tt.err)
			assert.NotErrorIs(t, err, shared.ErrStoreUnavailable)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("nope")))
}

func TestMigrations_AreOrderedAndComplete(t *testing.T) {
	migs := allMigrations()
	require.NotEmpty(t, migs)

	for i, m := range migs {
		assert.Equal(t, i+1, m.Version, "migration versions must be contiguous from 1")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.SQL)
	}
}

func TestConnection_ClosedRejectsCalls(t *testing.T) {
	conn := &Connection{closed: true}
	ctx := context.Background()

	assert.ErrorIs(t, conn.Ping(ctx), ErrConnectionClosed)
	assert.ErrorIs(t, conn.WithTx(ctx, func(pgx.Tx) error { return nil }), ErrConnectionClosed)

	_, err := conn.Exec(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
