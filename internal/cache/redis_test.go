package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Address: "  "})
	require.Error(t, err)
}

func TestNewRedisStoreFailsFastWhenUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{
		Address: "127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestRedisKeyPrefixing(t *testing.T) {
	require.Equal(t, "taskflow:overdue:task-1", prefixed("overdue:task-1"))
	require.Equal(t, "taskflow:overdue:task-1", prefixed("taskflow:overdue::task-1"))
	require.Equal(t, "taskflow:rate", prefixed(":rate:"))
	require.Nil(t, NewRedisStoreFromClient(nil))
}
