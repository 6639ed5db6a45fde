package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))

	got := DSN(ClientConfig{Host: "db", User: "arb", Password: "p@ss/word", Database: "arbengine"})
	assert.Equal(t, "postgres://arb:p%40ss%2Fword@db:5432/arbengine?sslmode=disable", got)

	got = DSN(ClientConfig{Host: "::1", Port: 6543, User: "arb", Database: "d", SSLMode: "require"})
	assert.Equal(t, "postgres://arb:@[::1]:6543/d?sslmode=require", got)
}

func TestMigrationFilesSorted(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsIncreasing(t, names)
}
