package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, st storage.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, st.Set(ctx, "k", "v1"))
	require.NoError(t, st.Set(ctx, "k", "v2"))
	v, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	require.NoError(t, st.Delete(ctx, "k"))
	require.NoError(t, st.Delete(ctx, "k"))
	_, err = st.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory(t *testing.T) {
	m := storage.NewMemory(0)
	defer m.Close()
	exerciseStorage(t, m)
}

func TestMemory_Expiry(t *testing.T) {
	m := storage.NewMemory(20 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "state", "abc"))
	require.Eventually(t, func() bool {
		_, err := m.Get(ctx, "state")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStorage(t, storage.NewRedis(client, "rup", 0))
}

func TestRedis_PrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	st := storage.NewRedis(client, "rup:session", time.Minute)
	require.NoError(t, st.Set(ctx, "csrf", "xyz"))
	require.True(t, mr.Exists("rup:session:csrf"))

	mr.FastForward(2 * time.Minute)
	_, err := st.Get(ctx, "csrf")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := storage.DialRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = storage.DialRedis(context.Background(), "127.0.0.1:1", "")
	require.Error(t, err)
}

func TestScope(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory(0)
	defer m.Close()

	a := storage.Scope(m, "browser", "a")
	b := storage.Scope(m, "browser", "b")
	require.NoError(t, a.Set(ctx, "token", "for-a"))

	_, err := b.Get(ctx, "token")
	require.ErrorIs(t, err, storage.ErrNotFound)

	raw, err := m.Get(ctx, "browser:a:token")
	require.NoError(t, err)
	require.Equal(t, "for-a", raw)
}
