package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSource(t *testing.T) {
	url := os.Getenv("SVRLIVE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SVRLIVE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutTimetable(ctx, 2099, "green", []byte(greenTimetable)))
	require.NoError(t, s.PutSchedule(ctx, 2099, []ScheduleEntry{{Date: "18-oct", Timetable: "green"}}))

	payload, err := s.Timetable(ctx, day(2099, time.October, 18), false)
	require.NoError(t, err)
	assert.JSONEq(t, greenTimetable, string(payload))

	_, err = s.Timetable(ctx, day(2099, time.October, 19), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("SVRLIVE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SVRLIVE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	base := seedDir(t)
	cache := NewRedisCache(NewFileSource(base, nil), client, time.Minute, nil)
	cache.prefix = "svrlive-test:"
	date := day(2025, time.October, 18)
	require.NoError(t, cache.Invalidate(ctx, date))

	first, err := cache.Timetable(ctx, date, false)
	require.NoError(t, err)

	cached, err := client.Get(ctx, cache.timetableKey(date, false)).Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	_, err = cache.Timetable(ctx, day(2025, time.October, 19), false)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := cache.Schedule(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.NoError(t, cache.Ping(ctx))
}
