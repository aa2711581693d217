package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/shouni/panorama-kit/internal/builder"
	"github.com/shouni/panorama-kit/internal/runner"
	"github.com/shouni/panorama-kit/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var scheduleHour int

// serveCmd は、毎日決まった時刻に翌日分を生成するワーカーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "日次スケジューラーと HTTP サーバーを起動するのだ。",
	Long: `毎日 --schedule-hour 時に翌日分のパノラマを生成するのだ。
HTTP では /health、/generate-now、/runs/{date} を提供するのだよ。`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().IntVar(&scheduleHour, "schedule-hour", -1, "日次生成を起動する時刻（0〜23、ローカル時刻）。省略時は環境変数か17時なのだ。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	hour := cfg.Options.ScheduleHour
	if scheduleHour >= 0 {
		hour = scheduleHour
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("--schedule-hour は 0〜23 で指定してほしいのだ: %d", hour)
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	defer appCtx.Close()

	if err := builder.RecoverInterrupted(ctx, appCtx.States); err != nil {
		return err
	}

	daily, err := builder.BuildDailyRunner(ctx, appCtx)
	if err != nil {
		return err
	}

	sched := runner.NewScheduler(daily, hour)
	srv := server.New(appName, daily, appCtx.States, sched)
	addr := net.JoinHostPort("", cfg.Port)

	slog.Info("ワーカーを起動するのだ！", "addr", addr, "schedule_hour", hour, "variant", appCtx.Variant.Name)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return sched.Start(egCtx)
	})
	eg.Go(func() error {
		return srv.Serve(egCtx, addr)
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("ワーカーが異常終了したのだ: %w", err)
	}

	slog.Info("ワーカーを停止したのだ")
	return nil
}
