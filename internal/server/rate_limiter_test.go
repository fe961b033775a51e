package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsBurstThenBlocks(t *testing.T) {
	req := require.New(t)
	bucket := newTokenBucket(3, time.Hour) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		req.True(bucket.allow(), "request %d within burst must pass", i)
	}
	req.False(bucket.allow(), "burst exhausted")
}

func TestTokenBucketRefills(t *testing.T) {
	req := require.New(t)
	bucket := newTokenBucket(2, 20*time.Millisecond)

	req.True(bucket.allow())
	req.True(bucket.allow())
	req.False(bucket.allow())

	time.Sleep(30 * time.Millisecond)
	req.True(bucket.allow(), "tokens must come back after the refill interval")
}

func TestTokenBucketSanitizesArguments(t *testing.T) {
	bucket := newTokenBucket(0, -time.Second)
	require.True(t, bucket.allow(), "degenerate settings fall back to one token per second")
	require.False(t, bucket.allow())
}
