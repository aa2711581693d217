package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/panorama-kit/pkg/domain"
)

// Scheduler は毎日決まった時刻に「翌日」分の生成を起動するのだ。
// 実行は逐次で、前の実行が終わるまで次は始まらないのだ。
type Scheduler struct {
	runner Runner
	hour   int
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	next time.Time
}

// SchedulerOption は Scheduler の設定を調整するのだ。
type SchedulerOption func(*Scheduler)

// WithClock は現在時刻と待機の実装を差し替えるのだ。
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// NewScheduler は Scheduler を初期化するのだ。hour は 0〜23 のローカル時刻なのだ。
func NewScheduler(r Runner, hour int, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner: r,
		hour:   ((hour % 24) + 24) % 24,
		now:    time.Now,
		after:  time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun は now より後で最初に hour:00 になる時刻なのだ。
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Next は次に予定されている実行時刻なのだ。Start 前はゼロ値なのだ。
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Start は ctx がキャンセルされるまで毎日の実行を続けるのだ。
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		now := s.now()
		next := NextRun(now, s.hour)
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		slog.InfoContext(ctx, "次の日次生成を予約したのだ", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(now)):
		}

		date := domain.FormatDate(next.AddDate(0, 0, 1))
		res, err := s.runner.Run(ctx, date)
		if err != nil {
			slog.ErrorContext(ctx, "日次生成に失敗したのだ", "date", date, "error", err)
			continue
		}
		slog.InfoContext(ctx, "日次生成が終わったのだ", "date", date, "skipped", res.Skipped, "path", res.PanoramaPath)
	}
}
