package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewFromClient(rdb, nil), mr
}

func TestClientSetGet(t *testing.T) {
	t.Parallel()

	client, _ := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestClientGetMissingKey(t *testing.T) {
	t.Parallel()

	client, _ := newMiniredisClient(t)

	_, err := client.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, goredis.Nil))
	assert.Equal(t, iderr.CodeInternalDatabase, iderr.GetCode(err))
}

func TestClientIncr(t *testing.T) {
	t.Parallel()

	client, _ := newMiniredisClient(t)
	ctx := context.Background()

	n, err := client.Incr(ctx, "attempts:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = client.Incr(ctx, "attempts:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestClientExpireAndTTL(t *testing.T) {
	t.Parallel()

	client, mr := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	ok, err := client.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// Key expires after the TTL elapses.
	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k")
	assert.True(t, errors.Is(err, goredis.Nil))
}

func TestClientDelExists(t *testing.T) {
	t.Parallel()

	client, _ := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	n, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := client.Del(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err = client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	client, mr := newMiniredisClient(t)

	assert.NoError(t, client.Health(context.Background()))

	mr.Close()
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, iderr.CodeUnavailable, iderr.GetCode(err))
}

func TestNewClientInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{Port: -1})
	require.Error(t, err)
	assert.Equal(t, iderr.CodeValidation, iderr.GetCode(err))
}

func TestNewClientConnectsToMiniredis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Config{
		Host: mr.Host(),
		Port: mustPort(t, mr.Port()),
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.NoError(t, client.Health(context.Background()))
}

func TestNewClientURIScheme(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{URI: "http://not-redis"})
	require.Error(t, err)
	assert.Equal(t, iderr.CodeValidation, iderr.GetCode(err))
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	var port int
	for _, r := range s {
		port = port*10 + int(r-'0')
	}
	return port
}
