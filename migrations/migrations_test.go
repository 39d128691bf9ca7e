package migrations_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/migrations"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
			_, err := fs.Stat(migrations.FS, strings.TrimSuffix(n, ".up.sql")+".down.sql")
			assert.NoError(t, err, "%s has no down migration", n)
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationsLoadAsSource(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestSchemaCoversRepositoryTables(t *testing.T) {
	up, err := fs.ReadFile(migrations.FS, "0001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"service_categories", "clients", "workers", "jobs"} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(up), "version")
}

func TestSeedAddsCategories(t *testing.T) {
	up, err := fs.ReadFile(migrations.FS, "0003_seed_categories.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "INSERT INTO service_categories")
	assert.Contains(t, string(up), "ON CONFLICT (name) DO NOTHING")

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()
	next, err := src.Next(2)
	require.NoError(t, err)
	assert.Equal(t, uint(3), next)
}
