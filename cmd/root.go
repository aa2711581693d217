package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/panorama-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

const appName = "panorama-kit"

// opts はフラグの値を受け取る実行時オプションなのだ。
var opts config.GenerateOptions

// addAppFlags は、全コマンド共通のグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	env := config.LoadConfig().Options

	// --- バリアント ---
	rootCmd.PersistentFlags().StringVar(&opts.Variant, "variant", env.Variant, "使用する生成バリアント名なのだ（空なら既定）。")
	rootCmd.PersistentFlags().StringVar(&opts.VariantsFile, "variants-file", "", "バリアント定義を上書きする YAML ファイルなのだ。")

	// --- 出力・状態 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", env.OutputDir, "パノラマと継続レコードの保存先（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.StateDB, "state-db", env.StateDB, "実行状態を記録する SQLite ファイルなのだ。")

	// --- 生成設定 ---
	rootCmd.PersistentFlags().IntVarP(&opts.SegmentCount, "segments", "n", 0, "1日に生成するセグメント数なのだ（1〜24、0 なら24）。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "画像ダウンロードのタイムアウトなのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.Compress, "compress", false, "Gemini へ送る画像を JPEG に圧縮するのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	if cmd.Name() == variantsCmd.Name() {
		return nil
	}
	// プロンプト生成に Gemini を使うので、APIキーは必須なのだ
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。プロンプト生成には必須なのだ")
	}
	if opts.SegmentCount < 0 || opts.SegmentCount > 24 {
		return fmt.Errorf("--segments は 0〜24 で指定してほしいのだ: %d", opts.SegmentCount)
	}
	return nil
}

// loadConfig は環境変数の設定にフラグの値を重ねるのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.Options = opts
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
func Execute() {
	config.LoadDotEnv()
	clibase.Execute(
		appName,
		addAppFlags,
		preRunAppE,
		generateCmd,
		serveCmd,
		variantsCmd,
	)
}
