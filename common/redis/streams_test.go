package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	id, err := PublishJSONToStream(ctx, client, "healthsync:records", 0,
		map[string]interface{}{"stepCount": 120},
		map[string]interface{}{"context_id": "ctx-1"},
	)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "healthsync:records", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ctx-1", msgs[0].Values["context_id"])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &payload))
	assert.Equal(t, float64(120), payload["stepCount"])
}

func TestStreamValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{int64(7), "7"},
		{36.6, "36.6"},
		{true, "true"},
		{[]int{1, 2}, "[1,2]"},
	}
	for _, c := range cases {
		got, err := streamValue(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}
