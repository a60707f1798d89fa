package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxOptions(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		opts := DefaultTxOptions()
		assert.Equal(t, pgx.ReadCommitted, opts.IsoLevel)
		assert.Equal(t, pgx.ReadWrite, opts.AccessMode)
	})

	t.Run("read only", func(t *testing.T) {
		opts := ReadOnlyTxOptions()
		assert.Equal(t, pgx.ReadCommitted, opts.IsoLevel)
		assert.Equal(t, pgx.ReadOnly, opts.AccessMode)
	})
}

func TestConnection_ClosedPool(t *testing.T) {
	ctx := context.Background()
	conn := &Connection{closed: true}

	_, err := conn.BeginTx(ctx, DefaultTxOptions())
	assert.ErrorIs(t, err, ErrConnectionClosed)

	err = conn.WithTx(ctx, DefaultTxOptions(), func(pgx.Tx) error {
		t.Fatal("callback must not run on a closed pool")
		return nil
	})
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "db.example.supabase.co"
	cfg.Password = "secret"

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=db.example.supabase.co")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "connect_timeout=10")
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "localhost"
	cfg.Password = "secret"
	cfg.MaxConns = 5
	cfg.MinConns = 1

	poolCfg, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(5), poolCfg.MaxConns)
	assert.Equal(t, int32(1), poolCfg.MinConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
}
