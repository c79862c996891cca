//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscout/sourcing-cli/internal/config"
)

func TestLoadSnapshotFileSingleObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"asin":"B00ONE","title":"One"}`), 0o644))

	snaps, err := loadSnapshotFile(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "B00ONE", snaps[0].ASIN)
}

func TestLoadSnapshotFileArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"asin":"B00ONE"},{"asin":"B00TWO"}]`), 0o644))

	snaps, err := loadSnapshotFile(path)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "B00TWO", snaps[1].ASIN)
}

func TestLoadSnapshotFileErrors(t *testing.T) {
	_, err := loadSnapshotFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = loadSnapshotFile(path)
	assert.Error(t, err)
}

func TestOpenStoreDrivers(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{Store: config.StoreConfig{Driver: "memory"}}
	st, err := openStore(context.Background())
	require.NoError(t, err)
	st.Close()

	cfg = &config.Config{Store: config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}}
	st, err = openStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	st.Close()

	cfg = &config.Config{Store: config.StoreConfig{Driver: "etcd"}}
	_, err = openStore(context.Background())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestCatalogClientRequiresKey(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	_, err := catalogClient(nil)
	assert.ErrorContains(t, err, "catalog.key")
}
