package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)

	before := time.Date(2025, 10, 14, 9, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 10, 14, 17, 0, 0, 0, loc), NextRun(before, 17))

	after := time.Date(2025, 10, 14, 18, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 10, 15, 17, 0, 0, 0, loc), NextRun(after, 17))

	exact := time.Date(2025, 10, 14, 17, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 10, 15, 17, 0, 0, 0, loc), NextRun(exact, 17))
}

func TestScheduler_Start(t *testing.T) {
	t.Run("予定時刻に翌日分を実行するのだ", func(t *testing.T) {
		now := time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC)
		fire := make(chan time.Time)
		var waits []time.Duration

		r := &fakeRunner{}
		s := NewScheduler(r, 17, WithClock(
			func() time.Time { return now },
			func(d time.Duration) <-chan time.Time {
				waits = append(waits, d)
				return fire
			},
		))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- s.Start(ctx) }()

		fire <- now.Add(8 * time.Hour)
		require.Eventually(t, func() bool { return len(r.seen()) == 1 }, time.Second, time.Millisecond)

		cancel()
		require.NoError(t, <-done)

		assert.Equal(t, []string{"2025-10-15"}, r.seen())
		assert.Equal(t, 8*time.Hour, waits[0])
		assert.Equal(t, time.Date(2025, 10, 14, 17, 0, 0, 0, time.UTC), s.Next())
	})

	t.Run("キャンセルされたら実行せずに戻るのだ", func(t *testing.T) {
		r := &fakeRunner{}
		s := NewScheduler(r, 17)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.Start(ctx))
		assert.Empty(t, r.seen())
	})

	t.Run("時刻は 0〜23 に丸めるのだ", func(t *testing.T) {
		assert.Equal(t, 1, NewScheduler(&fakeRunner{}, 25).hour)
		assert.Equal(t, 23, NewScheduler(&fakeRunner{}, -1).hour)
	})
}
