package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocksAfterMaxAttempts(t *testing.T) {
	mr, client := newTestRedis(t)
	th := NewRedis(client, Config{MaxAttempts: 3, Window: time.Minute}, "login:")
	ctx := context.Background()

	for range 3 {
		require.NoError(t, th.Check(ctx, "alice@example.com"))
		require.NoError(t, th.Fail(ctx, "alice@example.com"))
	}
	require.ErrorIs(t, th.Check(ctx, "alice@example.com"), ErrLocked)

	// Other keys are independent.
	require.NoError(t, th.Check(ctx, "bob@example.com"))

	// The TTL is set once for the window.
	require.Equal(t, time.Minute, mr.TTL("login:alice@example.com"))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, th.Check(ctx, "alice@example.com"))
}

func TestRedisFailNeverLeavesCounterWithoutTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	th := NewRedis(client, Config{MaxAttempts: 3, Window: time.Minute}, "login:")
	ctx := context.Background()

	// Later failures do not stretch the window.
	require.NoError(t, th.Fail(ctx, "carol@example.com"))
	mr.FastForward(20 * time.Second)
	require.NoError(t, th.Fail(ctx, "carol@example.com"))
	require.Equal(t, 40*time.Second, mr.TTL("login:carol@example.com"))

	// A counter stranded without a TTL picks one up on the next failure.
	require.NoError(t, mr.Set("login:dave@example.com", "7"))
	require.Zero(t, mr.TTL("login:dave@example.com"))
	require.NoError(t, th.Fail(ctx, "dave@example.com"))
	require.Equal(t, time.Minute, mr.TTL("login:dave@example.com"))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, th.Check(ctx, "dave@example.com"))
}

func TestRedisReset(t *testing.T) {
	_, client := newTestRedis(t)
	th := NewRedis(client, Config{MaxAttempts: 1, Window: time.Minute}, "2fa:")
	ctx := context.Background()

	require.NoError(t, th.Fail(ctx, "acct"))
	require.ErrorIs(t, th.Check(ctx, "acct"), ErrLocked)
	require.NoError(t, th.Reset(ctx, "acct"))
	require.NoError(t, th.Check(ctx, "acct"))
}

func TestRedisUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	th := NewRedis(client, DefaultConfig(), "")
	require.NoError(t, th.Ping(context.Background()))
	mr.Close()

	require.ErrorIs(t, th.Ping(context.Background()), ErrRedisUnavailable)
	require.ErrorIs(t, th.Check(context.Background(), "k"), ErrRedisUnavailable)
	require.ErrorIs(t, th.Fail(context.Background(), "k"), ErrRedisUnavailable)
}

func TestNop(t *testing.T) {
	var th Throttle = Nop{}
	for range 100 {
		require.NoError(t, th.Fail(context.Background(), "k"))
	}
	require.NoError(t, th.Check(context.Background(), "k"))
}
