package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbhavyaalag/EcoSphere/internal/store"
)

func TestKV_GetPut(t *testing.T) {
	kv, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	ctx := context.Background()

	_, err = kv.Get(ctx, "ecosphere-reports")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Put(ctx, "ecosphere-reports", []byte(`[]`)))
	require.NoError(t, kv.Put(ctx, "ecosphere-reports", []byte(`[{"id":"1"}]`)))

	got, err := kv.Get(ctx, "ecosphere-reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(got))
	assert.NoError(t, kv.Ping(ctx))
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	kv, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), "k", []byte("v")))
	require.NoError(t, kv.Close())

	kv, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	got, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}
