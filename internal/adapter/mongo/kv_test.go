package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbhavyaalag/EcoSphere/internal/store"
)

// Runs against a live server when MONGO_TEST_URI is set, e.g.
// MONGO_TEST_URI=mongodb://localhost:27017 go test ./internal/adapter/mongo/...
func TestKV_Live(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	kv, err := Connect(ctx, uri, "ecosphere_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = kv.collection.Drop(context.Background())
		_ = kv.Disconnect(context.Background())
	})

	_, err = kv.Get(ctx, "ecosphere-reports")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Put(ctx, "ecosphere-reports", []byte(`[]`)))
	require.NoError(t, kv.Put(ctx, "ecosphere-reports", []byte(`[{"id":"1"}]`)))

	got, err := kv.Get(ctx, "ecosphere-reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(got))
	assert.NoError(t, kv.Ping(ctx))
}
