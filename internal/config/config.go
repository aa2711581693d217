package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel         = "gemini-3-flash-preview"
	DefaultImageModel    = "gemini-3-pro-image-preview"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultAPITimeout    = 2 * time.Minute // Replicate の Prefer: wait は最大60秒待つのだ
	DefaultOutputDir     = "output"
	DefaultStateDB       = "output/panorama_state.db"
	DefaultScheduleHour  = 17
	DefaultPort          = "8080"
	DefaultCacheTTL      = 30 * time.Minute
	DefaultCleanInterval = 1 * time.Hour
	// DefaultRunLease は running の記録をハートビートなしで生存とみなす期間なのだ。
	DefaultRunLease = 10 * time.Minute
	// DefaultHeartbeatInterval は実行中にリースを延長する間隔なのだ。
	DefaultHeartbeatInterval = 1 * time.Minute
)

// Config はアプリケーション全体の環境設定（APIキーや保存先）を保持する構造体なのだ。
type Config struct {
	ReplicateAPIToken  string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiImageModel   string
	DefaultSeed        string // 空なら同梱の assets/default_seed.png を使うのだ
	DefaultDescription string
	Port               string

	Options GenerateOptions
}

// GenerateOptions は CLI フラグと環境変数から決まる実行時のパラメータなのだ。
type GenerateOptions struct {
	Date         string        // --date (YYYY-MM-DD, 空なら翌日)
	Variant      string        // --variant
	VariantsFile string        // --variants-file
	OutputDir    string        // --output-dir (ローカル or gs://...)
	SegmentCount int           // --segments (1〜24)
	StateDB      string        // --state-db
	ScheduleHour int           // --schedule-hour
	HTTPTimeout  time.Duration // --http-timeout
	Compress     bool          // --compress (Gemini へ JPEG で送る)
}

// LoadDotEnv はカレントディレクトリの .env と .env.local を環境変数に読み込むのだ。
// すでに設定されている環境変数は上書きしないのだ。ファイルが無くてもエラーにしないのだ。
func LoadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(name)
	}
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	return &Config{
		ReplicateAPIToken:  envutil.GetEnv("REPLICATE_API_TOKEN", ""),
		GeminiAPIKey:       envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:        envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel:   envutil.GetEnv("GEMINI_IMAGE_MODEL", DefaultImageModel),
		DefaultSeed:        envutil.GetEnv("PANORAMA_DEFAULT_SEED", ""),
		DefaultDescription: envutil.GetEnv("PANORAMA_DEFAULT_DESCRIPTION", ""),
		Port:               envutil.GetEnv("PORT", DefaultPort),
		Options: GenerateOptions{
			Variant:      envutil.GetEnv("PANORAMA_VARIANT", ""),
			OutputDir:    envutil.GetEnv("PANORAMA_OUTPUT_DIR", DefaultOutputDir),
			StateDB:      envutil.GetEnv("PANORAMA_STATE_DB", DefaultStateDB),
			ScheduleHour: envutil.GetEnvAsInt("PANORAMA_SCHEDULE_HOUR", DefaultScheduleHour),
			HTTPTimeout:  DefaultHTTPTimeout,
		},
	}
}
