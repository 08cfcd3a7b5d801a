package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.db")

	conn, err := Open(context.Background(), "file:"+path, zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, path)

	var n int
	err = conn.QueryRow("SELECT COUNT(*) FROM eval_results").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrate_Idempotent(t *testing.T) {
	conn, err := ConnectToDB(filepath.Join(t.TempDir(), "m.db"), zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()

	v1, err := Migrate(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	v2, err := Migrate(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestIsMemory(t *testing.T) {
	assert.True(t, isMemory(":memory:"))
	assert.False(t, isMemory("data/results.db"))
}
