package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/panorama-kit/internal/builder"
	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/spf13/cobra"
)

// generateCmd は、指定日の24時間パノラマを1本生成するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "指定日の24時間パノラマを生成するのだ。",
	Long: `前日の最終シードから継続して、1時間ごとのセグメントを右へ伸ばしながら生成し、
1枚のパノラマに結合して保存するのだ。日付を省略すると翌日分を生成するのだよ。`,
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().StringVarP(&opts.Date, "date", "d", "", "生成する日付（YYYY-MM-DD）。省略時は翌日なのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	date := opts.Date
	if date == "" {
		date = domain.FormatDate(time.Now().AddDate(0, 0, 1))
	}
	if _, err := domain.ParseDate(date); err != nil {
		return fmt.Errorf("--date は YYYY-MM-DD で指定してほしいのだ: %w", err)
	}

	cfg := loadConfig()
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	defer appCtx.Close()

	daily, err := builder.BuildDailyRunner(ctx, appCtx)
	if err != nil {
		return err
	}

	slog.Info("24時間パノラマ生成を起動するのだ！", "date", date, "variant", appCtx.Variant.Name, "output", cfg.Options.OutputDir)

	res, err := daily.Run(ctx, date)
	if err != nil {
		return fmt.Errorf("%s のパノラマ生成に失敗したのだ: %w", date, err)
	}
	if res.Skipped {
		slog.Info("生成済みなので何もしなかったのだ", "date", date)
		return nil
	}

	slog.Info("すべての生成工程が完了したのだ！", "panorama", res.PanoramaPath, "prompts", res.PromptsPath, "mode", res.Mode)
	return nil
}
